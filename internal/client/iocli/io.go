// Package iocli абстрагирует терминальный ввод-вывод CLI команд,
// чтобы команды можно было тестировать со скриптованным вводом.
package iocli

// IO терминальный ввод-вывод команды
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	ReadInput(prompt string) (string, error)
	ReadPassword(prompt string) (string, error)
	Write(p []byte) (n int, err error)
}
