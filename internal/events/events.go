// Package events publishes one JSON event per page a site worker finishes
// processing, fanned out through the messaging package's
// ProducerConsumerCloser seam (spec.md's optional observability hook). It
// plays the role the teacher's WebCrawler.enqueueResults/ParsedResult pair
// played for crawler/crawler.go, generalized from "links found" to the
// richer record this crawler has available once a page is fully indexed.
package events

import (
	"encoding/json"
	"log"

	"github.com/fernglade/rankcrawl/internal/messaging"
)

// PageProcessed describes one completed fetch-and-store cycle.
type PageProcessed struct {
	URL        string `json:"url"`
	LinksFound int    `json:"links_found"`
	Tokens     int    `json:"tokens"`
}

// Publisher publishes PageProcessed events onto a messaging.Producer. An
// event whose JSON encoding fails (it never should, given PageProcessed's
// shape) is logged and dropped, and a publish error is logged rather than
// returned. Publish blocks for as long as the producer's Produce call does.
type Publisher struct {
	producer messaging.Producer
	logger   *log.Logger
}

// NewPublisher wraps a messaging.Producer as a Publisher.
func NewPublisher(producer messaging.Producer, logger *log.Logger) *Publisher {
	return &Publisher{producer: producer, logger: logger}
}

// Publish encodes and sends one PageProcessed event.
func (p *Publisher) Publish(evt PageProcessed) {
	if p == nil || p.producer == nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		p.logger.Printf("events: encoding %v: %v", evt, err)
		return
	}
	if err := p.producer.Produce(data); err != nil {
		p.logger.Printf("events: publishing %v: %v", evt, err)
	}
}

// LogConsumer drains a messaging.Consumer's event channel, logging each
// decoded PageProcessed record. It runs until the consumer's Consume call
// returns, which happens when the underlying queue is closed.
func LogConsumer(consumer messaging.Consumer, logger *log.Logger) {
	ch := make(chan []byte)
	go func() {
		defer close(ch)
		if err := consumer.Consume(ch); err != nil {
			logger.Printf("events: consumer stopped: %v", err)
		}
	}()
	for data := range ch {
		var evt PageProcessed
		if err := json.Unmarshal(data, &evt); err != nil {
			logger.Printf("events: decoding event: %v", err)
			continue
		}
		logger.Printf("indexed %s (%d links, %d tokens)", evt.URL, evt.LinksFound, evt.Tokens)
	}
}
