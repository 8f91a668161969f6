package dl1

type Logger interface {
	Info(message string, module string)
	Error(string)
}

type noopLogger struct{}

func (noopLogger) Info(message string, module string) {}
func (noopLogger) Error(string)                       {}

var logger Logger = noopLogger{}

func SetLogger(l Logger) {
	logger = l
}
