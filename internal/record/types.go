package record

// Entry is one candidate eligible to win, sourced from a List.
// Entries are immutable once stored; ID is unique within the source list.
type Entry struct {
	ID             string            `json:"id"`
	Index          int               `json:"index"`
	Data           map[string]string `json:"data,omitempty"`
	SourceListID   string            `json:"sourceListId,omitempty"`
	SourceListName string            `json:"sourceListName,omitempty"`
}

// ListMetadata describes a List independently of its entries.
type ListMetadata struct {
	Name         string `json:"name"`
	Timestamp    int64  `json:"timestamp"`
	NameTemplate string `json:"nameTemplate,omitempty"`
}

// List is a named, ordered collection of entries uploaded together.
// The draw engine only reads lists, except when the remove-winners
// setting trims drawn entries out of them.
type List struct {
	ListID   string       `json:"listId"`
	Metadata ListMetadata `json:"metadata"`
	Entries  []Entry      `json:"entries"`
}

// Prize is an awardable item with a finite remaining quantity.
//
// Quantity is the only field the draw engine mutates. Version is an
// optimistic-concurrency token: every engine write bumps it, and a commit
// aborts if the version moved since the draw was validated.
type Prize struct {
	PrizeID             string `json:"prizeId"`
	Name                string `json:"name"`
	Quantity            int    `json:"quantity"`
	WinnersCountDefault int    `json:"winnersCountDefault,omitempty"`
	Version             int    `json:"version"`
}

// Winner is the durable record of one entry having been drawn for one
// prize in one draw. Immutable after commit except PickedUp and
// NotifyStatus, which belong to out-of-process collaborators.
type Winner struct {
	WinnerID     string            `json:"winnerId"`
	EntryID      string            `json:"entryId"`
	DisplayName  string            `json:"displayName"`
	Prize        string            `json:"prize"`
	Timestamp    int64             `json:"timestamp"`
	ListID       string            `json:"listId,omitempty"`
	ListName     string            `json:"listName,omitempty"`
	HistoryID    string            `json:"historyId"`
	PickedUp     bool              `json:"pickedUp"`
	Data         map[string]string `json:"data,omitempty"`
	NotifyStatus string            `json:"notifyStatus,omitempty"`
}

// HistoryEntry is the durable summary of one completed draw and the
// reversible unit of undo.
type HistoryEntry struct {
	HistoryID    string   `json:"historyId"`
	Timestamp    int64    `json:"timestamp"`
	ListIDs      []string `json:"listIds"`
	ListName     string   `json:"listName"`
	PrizeID      string   `json:"prizeId"`
	PrizeName    string   `json:"prizeName"`
	WinnersCount int      `json:"winnersCount"`
	WinnerIDs    []string `json:"winnerIds"`
}

// Setting is one key/value pair in the settings collection. Settings are
// the only collection where a decode failure degrades to empty instead of
// failing hard.
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
