package mixer

// DeltaTracker tracks level changes so only moving channels are broadcast.
type DeltaTracker struct {
	lastLevels map[int]float32
	epsilon    float32
}

// LevelUpdate is one channel in a level broadcast.
type LevelUpdate struct {
	Channel int     `json:"channel"`
	Address string  `json:"address"`
	Level   float32 `json:"level"`
	Target  float32 `json:"target"`
}

// NewDeltaTracker creates a tracker that ignores moves of epsilon or less.
func NewDeltaTracker(epsilon float32) *DeltaTracker {
	return &DeltaTracker{
		lastLevels: make(map[int]float32),
		epsilon:    epsilon,
	}
}

// ComputeDelta returns the channels whose level moved since the last call.
// If fullSync is true, every channel is returned.
func (d *DeltaTracker) ComputeDelta(channels []Channel, fullSync bool) []LevelUpdate {
	changed := make([]LevelUpdate, 0)
	for _, ch := range channels {
		last, exists := d.lastLevels[ch.Index]
		if fullSync || !exists || abs(ch.Level-last) > d.epsilon {
			changed = append(changed, LevelUpdate{
				Channel: ch.Index,
				Address: ch.Address,
				Level:   ch.Level,
				Target:  ch.Target,
			})
			d.lastLevels[ch.Index] = ch.Level
		}
	}
	return changed
}

// Clear resets all tracked levels.
func (d *DeltaTracker) Clear() {
	d.lastLevels = make(map[int]float32)
}

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
