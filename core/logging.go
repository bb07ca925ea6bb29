package core

// Logger is the leveled logging interface the services and apps write to;
// args may carry errors or extra context worth reporting alongside msg.
// services/logger provides the rollbar-backed production implementation.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
