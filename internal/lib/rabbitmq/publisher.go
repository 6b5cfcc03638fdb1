package rabbitmq

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
)

// ChannelPublisher адаптер канала AMQP под интерфейс публикации сервисов.
type ChannelPublisher struct {
	Ch *amqp.Channel
}

// Publish отправляет сообщение в обменник уведомлений по routing key.
func (p *ChannelPublisher) Publish(routingKey string, message any) error {
	return PublishMessage(p.Ch, NotificationsExchange, routingKey, message)
}

// PublishMessage публикует сообщение в обменник RabbitMQ в формате JSON.
func PublishMessage(ch *amqp.Channel, exchange string, routingKey string, message any) error {
	const op = "rabbitmq.PublishMessage"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = ch.Publish(
		exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
