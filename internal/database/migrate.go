package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-annotation-api/internal/models"
)

// columnMigration adds a column to a table created by an older release and
// backfills existing rows.
type columnMigration struct {
	table    string
	column   string
	types    map[string]string
	def      string
	backfill string
}

func (m columnMigration) addSQL(dialect string) string {
	columnType, ok := m.types[dialect]
	if !ok {
		columnType = m.types[DriverPostgres]
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s NOT NULL DEFAULT %s", m.table, m.column, columnType, m.def)
}

// additiveMigrations run before AutoMigrate so that legacy rows receive safe
// defaults instead of NULLs.
var additiveMigrations = []columnMigration{
	{
		table:    "feedback",
		column:   "submission_status",
		types:    map[string]string{DriverSQLite: "text", DriverPostgres: "varchar(16)"},
		def:      "'submitted'",
		backfill: "UPDATE feedback SET submission_status = 'submitted' WHERE submission_status IS NULL OR submission_status = ''",
	},
	{
		table:  "questions",
		column: "active",
		types:  map[string]string{DriverSQLite: "numeric", DriverPostgres: "boolean"},
		def:    "TRUE",
	},
}

// Models lists every table owned by the service in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.Annotator{},
		&models.Question{},
		&models.Assignment{},
		&models.Feedback{},
		&models.SuggestedQuestion{},
		&models.ActivityLog{},
	}
}

// Migrate evolves the schema additively inside a single transaction.
func Migrate(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		migrator := tx.Migrator()
		for _, m := range additiveMigrations {
			if !migrator.HasTable(m.table) || migrator.HasColumn(m.table, m.column) {
				continue
			}
			if err := tx.Exec(m.addSQL(tx.Dialector.Name())).Error; err != nil {
				return fmt.Errorf("add column %s.%s: %w", m.table, m.column, err)
			}
			if m.backfill != "" {
				if err := tx.Exec(m.backfill).Error; err != nil {
					return fmt.Errorf("backfill %s.%s: %w", m.table, m.column, err)
				}
			}
		}

		if err := tx.AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	})
}
