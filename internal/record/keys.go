package record

// StoreKey implementations satisfy store.Record. Each returns the value of
// the owning collection's key field for that record type.

func (l List) StoreKey() string         { return l.ListID }
func (w Winner) StoreKey() string       { return w.WinnerID }
func (p Prize) StoreKey() string        { return p.PrizeID }
func (h HistoryEntry) StoreKey() string { return h.HistoryID }
func (s Setting) StoreKey() string      { return s.Key }
