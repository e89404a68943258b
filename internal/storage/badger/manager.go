package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/common"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db         *BadgerDB
	job        interfaces.JobStorage
	deadLetter interfaces.DeadLetterStorage
	lock       interfaces.LockStorage
	filing     interfaces.FilingStorage
	company    interfaces.CompanyStorage
	document   interfaces.DocumentStorage
	summary    interfaces.SummaryStorage
	logger     arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:         db,
		job:        NewJobStorage(db, logger),
		deadLetter: NewDeadLetterStorage(db, logger),
		lock:       NewLockStorage(db, logger),
		filing:     NewFilingStorage(db, logger),
		company:    NewCompanyStorage(db, logger),
		document:   NewDocumentStorage(db, logger),
		summary:    NewSummaryStorage(db, logger),
		logger:     logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// JobStorage returns the Job storage interface
func (m *Manager) JobStorage() interfaces.JobStorage {
	return m.job
}

// DeadLetterStorage returns the DeadLetter storage interface
func (m *Manager) DeadLetterStorage() interfaces.DeadLetterStorage {
	return m.deadLetter
}

// LockStorage returns the Lock storage interface
func (m *Manager) LockStorage() interfaces.LockStorage {
	return m.lock
}

// FilingStorage returns the Filing storage interface
func (m *Manager) FilingStorage() interfaces.FilingStorage {
	return m.filing
}

// CompanyStorage returns the Company storage interface
func (m *Manager) CompanyStorage() interfaces.CompanyStorage {
	return m.company
}

// DocumentStorage returns the Document storage interface
func (m *Manager) DocumentStorage() interfaces.DocumentStorage {
	return m.document
}

// SummaryStorage returns the Summary storage interface
func (m *Manager) SummaryStorage() interfaces.SummaryStorage {
	return m.summary
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
