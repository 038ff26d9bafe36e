package logger

import (
	"fmt"

	"go.uber.org/zap"
)

var base *zap.Logger

var (
	serviceName = "default"
)

// Init строит продакшен-логгер один раз на старте процесса.
func Init(name string) error {
	l, err := zap.NewProduction(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	base = l
	serviceName = name
	return nil
}

func SetServiceName(newName string) string {
	oldName := serviceName
	serviceName = newName

	return oldName
}

func logger() *zap.Logger {
	if base == nil {
		// до Init — не падаем, пишем хоть куда-то
		base, _ = zap.NewProduction(zap.AddCallerSkip(1))
	}
	return base.With(zap.String("service", serviceName))
}

func Info(format string, args ...interface{}) {
	logger().Info(fmt.Sprintf(format, args...))
}

func Warn(format string, args ...interface{}) {
	logger().Warn(fmt.Sprintf(format, args...))
}

func Error(format string, args ...interface{}) {
	logger().Error(fmt.Sprintf(format, args...))
}

func Fatal(format string, args ...interface{}) {
	logger().Fatal(fmt.Sprintf(format, args...))
}
