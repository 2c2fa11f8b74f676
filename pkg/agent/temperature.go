package agent

// Fahrenheit converts a Celsius reading using the exact linear formula
// F = C x 9/5 + 32.
func Fahrenheit(celsius float64) float64 {
	return celsius*9/5 + 32
}
