// Package messages centralizes user-facing strings and error formats.
package messages

// Store messages.
const (
	StoreOpenFailedFmt    = "open canonical store %s: %w"
	StoreMigrateSchemaFmt = "migrate store schema: %w"
	StoreNameRequired     = "artifact name is required"
	StoreContentRequired  = "artifact content is required"
	StoreNothingToRestore = "nothing to restore"
	StoreInvalidTypeFmt   = "invalid artifact type %q"
	StoreInvalidScopeFmt  = "invalid scope %q"
)

// Scan messages.
const (
	ScanHomeDirFailedFmt        = "resolve home directory: %v"
	ScanNotDirectoryFmt         = "import path %s is not a directory"
	ScanDirUnreadableFmt        = "could not read directory %s: %v"
	ScanFileUnreadableFmt       = "could not read %s: %v"
	ScanFileTooLargeFmt         = "%s exceeds max import size (%d bytes)"
	ScanFileNotUTF8Fmt          = "%s is not valid UTF-8 text"
	ScanCandidateLimitFmt       = "import candidate limit reached (%d); narrow the scope or import in batches"
	ScanURLInvalidFmt           = "invalid URL: %v"
	ScanURLSchemeNotAllowed     = "only http and https URLs are allowed"
	ScanURLHostRequired         = "URL must include a host"
	ScanURLLocalhostNotAllowed  = "localhost URLs are not allowed"
	ScanURLPrivateIPNotAllowed  = "URLs targeting private or local IP ranges are not allowed"
	ScanURLFetchFailedFmt       = "failed to fetch %s: %v"
	ScanURLStatusFmt            = "%s returned non-success status %s"
	ScanURLBodyFailedFmt        = "failed to read response body from %s: %v"
	ScanURLTooLargeFmt          = "URL content exceeds max size (%d bytes)"
	ScanClipboardEmpty          = "clipboard content is empty"
	ScanClipboardTooLargeFmt    = "clipboard content exceeds max size (%d bytes)"
)

// Import messages.
const (
	ImportReasonEmptyContent        = "content is empty"
	ImportReasonDuplicateContentFmt = "duplicate content already exists as %q"
	ImportReasonDuplicateFmt        = "duplicate name and content already exists as %q"
	ImportReasonNameExists          = "name already exists"
	ImportReasonNameCollision       = "name collision with different content"
	ImportCreateFailedFmt           = "import %q: %v"
	ImportSyncErrorFmt              = "sync error for %s: %s"
	ImportUnknownModeFmt            = "unknown conflict mode %q (expected skip, rename or replace)"
)

// Sync messages.
const (
	SyncSystemRequired       = "sync system is required"
	SyncCreateDirFailedFmt   = "create directory %s: %w"
	SyncWriteFileFailedFmt   = "write %s: %w"
	SyncReadFileFailedFmt    = "read %s: %w"
	SyncErrorEntryFmt        = "%s: %v"
	SyncRemoveFailedFmt      = "remove stale file %s: %w"
	SyncUnknownResolutionFmt = "unknown conflict resolution %q"
	SyncConflictGoneFmt      = "conflict %s no longer tracked"
)

// Migration messages.
const (
	MigrateBackupFailedFmt     = "create store backup: %w"
	MigrateChecksumFailedFmt   = "write backup checksum: %w"
	MigrateAlreadyRunning      = "a migration is already in progress"
	MigrateBackupMissingFmt    = "backup file %s not found"
	MigrateChecksumMissingFmt  = "backup checksum for %s missing; restoration aborted"
	MigrateChecksumMismatch    = "backup integrity check failed: checksum mismatch"
	MigrateRestoreFailedFmt    = "restore store from backup: %w"
	MigrateItemFailedFmt       = "migrate %q: %v"
	MigrateRollbackUnavailable = "rollback requires a backup produced by a prior migration"
)

// Config messages.
const (
	ConfigMissingFileFmt      = "read config %s: %w"
	ConfigInvalidFmt          = "invalid config %s: %w"
	ConfigUnrecognizedKeysFmt = "unrecognized keys in %s: %w"
	ConfigInvalidModeFmt      = "invalid storage mode %q (expected %q or %q)"
)

// MCP messages.
const (
	McpRunServerFailedFmt = "failed to run MCP server: %v"
)

// CLI messages.
const (
	CLIRootShort    = "Loom manages rules, commands and skills across AI tool configs"
	CLIScanShort    = "Discover import candidates from a source"
	CLIImportShort  = "Import scanned candidates into the canonical store"
	CLISyncShort    = "Project canonical artifacts into adapter config files"
	CLIResolveShort = "Resolve a sync drift conflict"
	CLIMigrateShort = "Migrate the canonical store between storage representations"
	CLIHistoryShort = "Show import and sync history"
	CLIMCPShort     = "Run the companion MCP status server over stdio"

	CLIAddShort       = "Add an artifact to the canonical store"
	CLIListShort      = "List canonical artifacts"
	CLIRemoveShort    = "Delete an artifact (the last deletion is restorable)"
	CLIRestoreShort   = "Restore the most recently deleted artifact"
	CLIDuplicateShort = "Duplicate an artifact under a fresh name"
	CLIToggleShort    = "Enable or disable an artifact"

	CLIVersionTemplate = "loom {{.Version}}\n"
)
