package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/common"
	"github.com/ternarybob/dealdesk/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db        *BadgerDB
	knowledge interfaces.KnowledgeStorage
	sources   interfaces.SourceStorage
	history   interfaces.HistoryStorage
	notes     interfaces.NoteStorage
	kv        interfaces.KeyValueStorage
	logger    arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:        db,
		knowledge: NewKnowledgeStorage(db, logger),
		sources:   NewSourceStorage(db, logger),
		history:   NewHistoryStorage(db, logger),
		notes:     NewNoteStorage(db, logger),
		kv:        NewKVStorage(db, logger),
		logger:    logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// KnowledgeStorage returns the knowledge item storage
func (m *Manager) KnowledgeStorage() interfaces.KnowledgeStorage {
	return m.knowledge
}

// SourceStorage returns the source descriptor storage
func (m *Manager) SourceStorage() interfaces.SourceStorage {
	return m.sources
}

// HistoryStorage returns the summary history storage
func (m *Manager) HistoryStorage() interfaces.HistoryStorage {
	return m.history
}

// NoteStorage returns the note storage
func (m *Manager) NoteStorage() interfaces.NoteStorage {
	return m.notes
}

// KeyValueStorage returns the KeyValue storage interface
func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage {
	return m.kv
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
