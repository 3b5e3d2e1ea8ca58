// Package digest mails a topic's digest to its subscribers.
package digest

// Directory looks up who subscribes to a topic.
type Directory interface {
	Subscribers(topic string) []string
}

// Mailer sends one message.
type Mailer interface {
	Send(to, subject string) error
}

// Publish mails the topic to every subscriber and returns how many sends
// succeeded. A failed send does not stop the others.
func Publish(dir Directory, mail Mailer, topic string) int {
	sent := 0

	for _, to := range dir.Subscribers(topic) {
		if mail.Send(to, "digest: "+topic) == nil {
			sent++
		}
	}

	return sent
}
