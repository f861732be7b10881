package mediagroup

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

type Item struct {
	ChatID       int64
	UserID       int64
	MessageID    int
	MediaGroupID string
	Caption      string
	FileID       string
}

// Group is a flushed album. FileIDs follow message order, which is the
// order the user picked the photos in.
type Group struct {
	ChatID  int64
	UserID  int64
	Caption string
	FileIDs []string
}

type Options struct {
	Debounce time.Duration
	OnFlush  func(Group)
}

type Aggregator struct {
	mu       sync.Mutex
	debounce time.Duration
	onFlush  func(Group)
	groups   map[string]*pendingGroup
}

type pendingGroup struct {
	chatID  int64
	userID  int64
	caption string
	photos  []photo
	timer   *time.Timer
}

type photo struct {
	messageID int
	fileID    string
}

func New(opts Options) *Aggregator {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 1200 * time.Millisecond
	}

	return &Aggregator{
		debounce: debounce,
		onFlush:  opts.OnFlush,
		groups:   make(map[string]*pendingGroup),
	}
}

func (a *Aggregator) Add(item Item) {
	if item.MediaGroupID == "" || item.FileID == "" {
		return
	}

	key := makeKey(item.ChatID, item.MediaGroupID)

	a.mu.Lock()
	defer a.mu.Unlock()

	pg, ok := a.groups[key]
	if !ok {
		pg = &pendingGroup{chatID: item.ChatID, userID: item.UserID}
		a.groups[key] = pg
	}
	pg.photos = append(pg.photos, photo{messageID: item.MessageID, fileID: item.FileID})
	if item.Caption != "" {
		pg.caption = item.Caption
	}

	if pg.timer != nil {
		pg.timer.Stop()
	}
	pg.timer = time.AfterFunc(a.debounce, func() {
		a.flush(key)
	})
}

// Pending reports how many albums are still collecting photos.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.groups)
}

func (a *Aggregator) flush(key string) {
	a.mu.Lock()
	pg, ok := a.groups[key]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.groups, key)
	onFlush := a.onFlush
	a.mu.Unlock()

	// Updates can arrive out of order when handled concurrently.
	sort.SliceStable(pg.photos, func(i, j int) bool {
		return pg.photos[i].messageID < pg.photos[j].messageID
	})

	group := Group{
		ChatID:  pg.chatID,
		UserID:  pg.userID,
		Caption: pg.caption,
		FileIDs: make([]string, 0, len(pg.photos)),
	}
	for _, p := range pg.photos {
		group.FileIDs = append(group.FileIDs, p.fileID)
	}

	if onFlush != nil {
		onFlush(group)
	}
}

func makeKey(chatID int64, mediaGroupID string) string {
	return fmt.Sprintf("%d:%s", chatID, mediaGroupID)
}
