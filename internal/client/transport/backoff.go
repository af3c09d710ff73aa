package transport

import "time"

// Backoff возвращает задержку перед попыткой переподключения номер attempt (с нуля):
// min(base * 2^attempt, max).
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= max || delay <= 0 {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// Scheduler откладывает выполнение fn на delay и возвращает функцию отмены.
// В тестах подменяется ручным планировщиком.
type Scheduler func(delay time.Duration, fn func()) (cancel func() bool)

// TimerScheduler планировщик на time.AfterFunc
func TimerScheduler(delay time.Duration, fn func()) func() bool {
	t := time.AfterFunc(delay, fn)
	return t.Stop
}
