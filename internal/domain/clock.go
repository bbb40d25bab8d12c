package domain

import "time"

// Clock — источник времени для меток событий.
type Clock interface {
	Now() time.Time
}

// SystemClock возвращает текущее время в UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock всегда возвращает одно и то же время (для тестов и повторной обработки).
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c).UTC() }

var (
	_ Clock = SystemClock{}
	_ Clock = FixedClock{}
)
