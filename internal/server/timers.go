package server

import (
	"sync"
	"time"
)

type timerKind string

const (
	timerRound   timerKind = "round"
	timerPicker  timerKind = "picker"
	timerJudging timerKind = "judging"
)

type timerKey struct {
	code string
	kind timerKind
}

type countdown struct {
	cancel chan struct{}
	once   sync.Once
}

func (c *countdown) stop() {
	c.once.Do(func() { close(c.cancel) })
}

// timerRegistry owns every per-room countdown plus the one-shot scheduled
// action used for the post-award delay. At most one countdown runs per
// (room, kind); starting a new one stops the prior instance first.
type timerRegistry struct {
	mu         sync.Mutex
	interval   time.Duration
	countdowns map[timerKey]*countdown
	scheduled  map[string]*time.Timer
}

func newTimerRegistry() *timerRegistry {
	return newTimerRegistryWithInterval(time.Second)
}

// newTimerRegistryWithInterval exists for tests that cannot wait out
// real seconds.
func newTimerRegistryWithInterval(interval time.Duration) *timerRegistry {
	return &timerRegistry{
		interval:   interval,
		countdowns: make(map[timerKey]*countdown),
		scheduled:  make(map[string]*time.Timer),
	}
}

// Start launches a one-second countdown from seconds. onTick fires after
// each elapsed second with the remaining time; onExpire fires once the
// countdown reaches zero, after the timer has removed itself from the
// registry. Both callbacks run outside the registry lock.
func (r *timerRegistry) Start(code string, kind timerKind, seconds int, onTick func(left int), onExpire func()) {
	key := timerKey{code: code, kind: kind}
	cd := &countdown{cancel: make(chan struct{})}

	r.mu.Lock()
	if prior, ok := r.countdowns[key]; ok {
		prior.stop()
	}
	r.countdowns[key] = cd
	r.mu.Unlock()

	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		left := seconds
		for {
			select {
			case <-cd.cancel:
				return
			case <-ticker.C:
				left--
				if onTick != nil {
					onTick(left)
				}
				if left <= 0 {
					r.removeIfCurrent(key, cd)
					if onExpire != nil {
						onExpire()
					}
					return
				}
			}
		}
	}()
}

// Cancel stops the countdown for (code, kind) if one is running.
func (r *timerRegistry) Cancel(code string, kind timerKind) bool {
	key := timerKey{code: code, kind: kind}
	r.mu.Lock()
	defer r.mu.Unlock()
	cd, ok := r.countdowns[key]
	if !ok {
		return false
	}
	cd.stop()
	delete(r.countdowns, key)
	return true
}

// CancelAll stops every countdown and scheduled action for a room. Called
// on delete, finish, abort, and host departure.
func (r *timerRegistry) CancelAll(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, kind := range []timerKind{timerRound, timerPicker, timerJudging} {
		key := timerKey{code: code, kind: kind}
		if cd, ok := r.countdowns[key]; ok {
			cd.stop()
			delete(r.countdowns, key)
		}
	}
	if timer, ok := r.scheduled[code]; ok {
		timer.Stop()
		delete(r.scheduled, code)
	}
}

func (r *timerRegistry) IsActive(code string, kind timerKind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.countdowns[timerKey{code: code, kind: kind}]
	return ok
}

// Schedule runs fn once after delay, replacing any action already pending
// for the room. The action is dropped if CancelAll runs first.
func (r *timerRegistry) Schedule(code string, delay time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prior, ok := r.scheduled[code]; ok {
		prior.Stop()
	}
	r.scheduled[code] = time.AfterFunc(delay, func() {
		r.mu.Lock()
		delete(r.scheduled, code)
		r.mu.Unlock()
		fn()
	})
}

// removeIfCurrent drops the countdown only when it is still the registered
// instance, so an expiring timer never evicts its replacement.
func (r *timerRegistry) removeIfCurrent(key timerKey, cd *countdown) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.countdowns[key]; ok && current == cd {
		delete(r.countdowns, key)
	}
}
