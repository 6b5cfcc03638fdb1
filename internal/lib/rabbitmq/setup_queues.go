package rabbitmq

// QueueConfig описывает очередь и её routing key в обменнике уведомлений.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// RemindersRoutingKey ключ маршрутизации тикетов напоминаний.
const RemindersRoutingKey = "reminders"

// GetReminderQueues возвращает очереди, которые потребляет reminder-sender.
func GetReminderQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "notification.reminders", RoutingKey: RemindersRoutingKey},
	}
}
