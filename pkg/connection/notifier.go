package connection

// Notifier is the user-visible error sink. It receives short messages for
// authentication failure, retry exhaustion and failed commands.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string)

// Notify calls f.
func (f NotifierFunc) Notify(message string) {
	f(message)
}
