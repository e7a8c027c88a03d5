package constants

const (
	AppName            = "seatwise"
	DefaultKeyringUser = "database-connection"
	DefaultConfigPath  = "~/.config/seatwise/seatwise.db"
	Version            = "v0.3.0"

	// TimestampFormat is used for every timestamp persisted by the ledger.
	// Fixed-width so stored values sort lexically in time order.
	TimestampFormat = "2006-01-02T15:04:05.000000000Z07:00"

	// Backup constants
	MaxBackups       = 14
	BackupDirName    = "backups"
	BackupFilePrefix = "seatwise-"
	BackupFileSuffix = ".db"
)
