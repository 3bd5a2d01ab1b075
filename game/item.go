package game

// Item is a boost pickup. Pos is the top-left corner of its box.
type Item struct {
	Pos Vec
}

func (it Item) Rect() Rect {
	return Rect{X: it.Pos.X, Y: it.Pos.Y, W: ItemSize, H: ItemSize}
}

// spawnItem places one item somewhere clear of walls. Exhausting the sampler
// just skips this spawn.
func (m *Match) spawnItem() bool {
	p, ok := m.Track.RandomSafePoint(m.rng, m.Track.Bounds, ItemSize, ItemSize, SafePointMaxAttempts)
	if !ok {
		return false
	}
	m.Items = append(m.Items, Item{Pos: p})
	return true
}

func (m *Match) spawnInitialItems() {
	m.Items = m.Items[:0]
	for i := 0; i < MaxItems; i++ {
		m.spawnItem()
	}
}

func (m *Match) tickSpawner(dt float64) {
	m.spawnTimer += dt
	if m.spawnTimer < ItemSpawnInterval {
		return
	}
	m.spawnTimer = 0
	if len(m.Items) < MaxItems {
		m.spawnItem()
	}
}

// pickup hands the first overlapping item to c. A car already holding an
// item cannot take another, and a taken item is gone for the other car too.
func (m *Match) pickup(c *Car) bool {
	if c.HasItem {
		return false
	}
	box := c.AABB()
	for i, it := range m.Items {
		if box.Overlaps(it.Rect()) {
			m.Items = append(m.Items[:i], m.Items[i+1:]...)
			c.HasItem = true
			return true
		}
	}
	return false
}
