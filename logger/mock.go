package logger

import (
	"fmt"
	"sync"
)

var (
	once       sync.Once
	mockLogger *MockLogger
)

type MockLogger struct {
}

var _ Logger = (*MockLogger)(nil)

func (m MockLogger) SetLogLevel(level string) {
	// mock logger
}

func (m MockLogger) Info(msg string, fields ...Field) {
	// mock logger
	fmt.Printf("%s %+v \n", msg, fields)
}

func (m MockLogger) Warn(msg string, fields ...Field) {
	// mock logger
	fmt.Printf("%s %+v \n", msg, fields)
}

func (m MockLogger) Error(msg string, fields ...Field) {
	// mock logger
	fmt.Printf("%s %+v \n", msg, fields)
}

func (m MockLogger) Fatal(msg string, fields ...Field) {
	// mock logger
	fmt.Printf("%s %+v \n", msg, fields)
}

func (m MockLogger) Debug(msg string, fields ...Field) {
	// mock logger
	fmt.Printf("%s %+v \n", msg, fields)
}

func (m MockLogger) Infof(format string, args ...interface{}) {
	// mock logger
	fmt.Printf(format, args...)
}

func (m MockLogger) Warnf(format string, args ...interface{}) {
	// mock logger
	fmt.Printf(format, args...)
}

func (m MockLogger) Errorf(format string, args ...interface{}) {
	// mock logger
	fmt.Printf(format, args...)
}

func (m MockLogger) Fatalf(format string, args ...interface{}) {
	// mock logger
	fmt.Printf(format, args...)
}

func (m MockLogger) Debugf(format string, args ...interface{}) {
	// mock logger
	fmt.Printf(format, args...)
}

func (m MockLogger) SweetenFields(args []interface{}) []Field {
	// mock logger
	return []Field{}
}

func NewMockLogger() Logger {
	once.Do(func() {
		mockLogger = &MockLogger{}
	})

	return mockLogger
}
