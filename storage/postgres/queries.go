package postgres

// Vault store queries. Unsigned amounts travel as decimal text and are cast
// by the server into the uint64 domain.
const (
	selectVault = `
		SELECT data FROM vaults
		WHERE address = $1`

	lockVault = `
		SELECT data FROM vaults
		WHERE address = $1
		FOR UPDATE`

	insertVault = `
		INSERT INTO vaults (address, vault_id, owner, balance, is_delegated, delegate_validator, is_private, nonce, created_at, last_activity, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	updateVault = `
		UPDATE vaults
		SET
			balance = $2,
			is_delegated = $3,
			delegate_validator = $4,
			is_private = $5,
			nonce = $6,
			last_activity = $7,
			data = $8
		WHERE address = $1`

	selectPermission = `
		SELECT data FROM permissions
		WHERE address = $1`

	selectPermissions = `
		SELECT data FROM permissions
		WHERE vault = $1
		ORDER BY granted_at, permitted COLLATE "C"`

	insertPermission = `
		INSERT INTO permissions (address, vault, permitted, granted_by, granted_at, data)
		VALUES ($1, $2, $3, $4, $5, $6)`

	selectNativeBalance = `
		SELECT balance::text FROM native_accounts
		WHERE address = $1`

	ensureNativeAccount = `
		INSERT INTO native_accounts (address, balance)
		VALUES ($1, 0)
		ON CONFLICT (address) DO NOTHING`

	lockNativeBalance = `
		SELECT balance::text FROM native_accounts
		WHERE address = $1
		FOR UPDATE`

	updateNativeBalance = `
		UPDATE native_accounts SET balance = $2
		WHERE address = $1`
)
