package kafka

import (
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-rsvp/internal/models"
)

// RequiredTopics lists every topic this service publishes to, one per
// transition type.
func RequiredTopics(prefix string) []string {
	types := []string{
		models.EventTypeRsvpConfirmed,
		models.EventTypeRsvpWaitlisted,
		models.EventTypeRsvpCancelled,
		models.EventTypeRsvpPromoted,
		models.EventTypeCheckinRecorded,
	}
	topics := make([]string, len(types))
	for i, t := range types {
		topics[i] = prefix + "." + t
	}
	return topics
}

// EnsureTopicsExist creates the given topics if the broker does not
// already have them.
func EnsureTopicsExist(brokers []string, topics []string) error {
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	controllerConn, err := kafka.Dial("tcp", controller.Host)
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	for _, topic := range topics {
		topicConfigs := []kafka.TopicConfig{
			{
				Topic:             topic,
				NumPartitions:     1,
				ReplicationFactor: 1,
			},
		}

		err = controllerConn.CreateTopics(topicConfigs...)
		if err != nil {
			if err.Error() == "kafka server: topic already exists" {
				continue
			}
			log.Printf("Error creating topic %s: %v", topic, err)
			// keep trying the remaining topics
		}
	}

	// Give the broker a moment to settle the new topics
	time.Sleep(1 * time.Second)
	return nil
}
