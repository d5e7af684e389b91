package messenger

// trimAt/trimTo implement spec.md §4.7's recent-message dedup: once the
// recent-sends list grows past trimAt, keep only the most recent trimTo.
const (
	trimAt = 200
	trimTo = 20
)

type sentKey struct {
	channel string
	text    string
}

// markSent records (channel, text) as sent and reports whether it is new.
// A duplicate within the recent window is reported as already-sent (false)
// so the caller skips resending.
func (m *Messenger) markSent(channel, text string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sentKey{channel: channel, text: text}
	for _, k := range m.recent {
		if k == key {
			return false
		}
	}

	m.recent = append(m.recent, key)
	if len(m.recent) > trimAt {
		m.recent = append([]sentKey(nil), m.recent[len(m.recent)-trimTo:]...)
	}
	return true
}
