// Package messaging is the seam internal/events publishes
// events.PageProcessed records through: a site worker finishes a page, the
// event is JSON-encoded and handed to a Producer, and whatever is on the
// other end of the matching Consumer (today, the in-process log consumer in
// cmd/webcrawler) decodes and logs it, without events or the site worker
// caring what actually backs the queue.
package messaging

// Producer exposes a single Produce method meant to enqueue an array of
// bytes, typically one JSON-encoded events.PageProcessed record.
type Producer interface {
	Produce([]byte) error
}

// Consumer connects to a queue, blocking while consuming incoming byte
// payloads and forwarding them onto a channel.
type Consumer interface {
	Consume(chan<- []byte) error
}

// ProducerConsumer is the combined read/write side of a message queue.
type ProducerConsumer interface {
	Producer
	Consumer
}

// ProducerConsumerCloser is a ProducerConsumer whose backing connection
// must be explicitly released.
type ProducerConsumerCloser interface {
	ProducerConsumer
	Close()
}
