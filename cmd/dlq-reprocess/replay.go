package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

type offsetReader interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
}

type partitionReader interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionOpener interface {
	Open(topic string, partition int32, offset int64) (partitionReader, error)
}

// messageSender — подмножество kafka.Producer для переотправки писем.
type messageSender interface {
	Send(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error
}

type saramaOpener struct {
	consumer sarama.Consumer
}

func (o saramaOpener) Open(topic string, partition int32, offset int64) (partitionReader, error) {
	return o.consumer.ConsumePartition(topic, partition, offset)
}

type replayStats struct {
	scanned  int
	replayed int
	filtered int
	skipped  int
}

// replayer читает DLQ по партициям и переотправляет письма в исходные топики.
type replayer struct {
	cfg     config
	offsets offsetReader
	opener  partitionOpener
	sender  messageSender
	logger  *log.Entry
	stats   replayStats
}

func newReplayer(cfg config, conn connection) *replayer {
	return &replayer{
		cfg:     cfg,
		offsets: conn.offsets,
		opener:  conn.opener,
		sender:  conn.sender,
		logger:  log.WithField("component", "dlq-reprocess").WithField("source_topic", cfg.sourceTopic),
	}
}

func (r *replayer) run(ctx context.Context) (replayStats, error) {
	if r.offsets == nil || r.opener == nil {
		return r.stats, errors.New("kafka client and consumer are required")
	}
	if r.cfg.execute && r.sender == nil {
		return r.stats, errors.New("producer is required in execute mode")
	}

	partitions, err := r.offsets.Partitions(r.cfg.sourceTopic)
	if err != nil {
		return r.stats, fmt.Errorf("list partitions of %s: %w", r.cfg.sourceTopic, err)
	}
	if len(partitions) == 0 {
		r.logger.Warn("source topic has no partitions")
		return r.stats, nil
	}
	slices.Sort(partitions)

	for _, partition := range partitions {
		quota := r.cfg.limit - r.stats.scanned
		if quota <= 0 {
			break
		}
		if err := r.scanPartition(ctx, partition, quota); err != nil {
			return r.stats, err
		}
	}
	return r.stats, nil
}

// window возвращает диапазон [from, to) оффсетов, который нужно прочитать.
func (r *replayer) window(partition int32, quota int) (from, to int64, err error) {
	oldest, err := r.offsets.GetOffset(r.cfg.sourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return 0, 0, fmt.Errorf("oldest offset of partition %d: %w", partition, err)
	}
	newest, err := r.offsets.GetOffset(r.cfg.sourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return 0, 0, fmt.Errorf("newest offset of partition %d: %w", partition, err)
	}

	from = oldest
	if r.cfg.fromNewest {
		from = max(oldest, newest-int64(quota))
	}
	return from, newest, nil
}

func (r *replayer) scanPartition(ctx context.Context, partition int32, quota int) error {
	from, to, err := r.window(partition, quota)
	if err != nil {
		return err
	}
	if from >= to {
		return nil
	}

	reader, err := r.opener.Open(r.cfg.sourceTopic, partition, from)
	if err != nil {
		return fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = reader.Close() }()

	idle := time.NewTimer(r.cfg.idleTimeout)
	defer idle.Stop()

	for seen := 0; seen < quota; {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle.C:
			r.logger.WithField("partition", partition).Debug("partition went idle")
			return nil
		case cerr := <-reader.Errors():
			if cerr != nil {
				return fmt.Errorf("partition %d: %w", partition, cerr)
			}
		case msg, ok := <-reader.Messages():
			if !ok || msg == nil || msg.Offset >= to {
				return nil
			}
			idle.Reset(r.cfg.idleTimeout)

			seen++
			r.stats.scanned++
			if err := r.handle(ctx, msg); err != nil {
				return err
			}
			if msg.Offset+1 >= to {
				return nil
			}
		}
	}
	return nil
}

// handle разбирает одно письмо; ошибка возвращается только при сбое отправки.
func (r *replayer) handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	entry := r.logger.WithFields(log.Fields{"partition": msg.Partition, "offset": msg.Offset})

	l, err := decodeLetter(msg, r.cfg.targetTopic)
	if err != nil {
		r.stats.skipped++
		if !errors.Is(err, errNotALetter) {
			entry.WithError(err).Warn("skip broken dead letter")
		}
		return nil
	}
	if !r.cfg.accepts(l) {
		r.stats.filtered++
		return nil
	}

	entry = entry.WithFields(log.Fields{"target_topic": l.topic, "key": l.key})
	if !r.cfg.execute {
		entry.Info("dlq replay candidate")
		r.stats.replayed++
		return nil
	}
	if err := r.sender.Send(ctx, l.topic, l.key, l.value, l.headers); err != nil {
		return fmt.Errorf("republish offset %d to %s: %w", msg.Offset, l.topic, err)
	}
	entry.Info("dead letter republished")
	r.stats.replayed++
	return nil
}
