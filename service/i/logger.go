package i

// Logger is the leveled logger every component receives.
type Logger interface {
	Debug(string)
	Info(string)
	Warning(string)
	Error(string)
}
