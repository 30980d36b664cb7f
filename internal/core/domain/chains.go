package domain

// Solana mainnet constants.
const (
	// LamportsPerSOL is the number of lamports in one SOL.
	LamportsPerSOL = 1_000_000_000

	// NativeDecimals is the number of decimals of the native unit.
	NativeDecimals = 9

	USDCMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	USDTMint = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"

	// CommitmentConfirmed is the commitment used for subscriptions and fetches.
	CommitmentConfirmed = "confirmed"
)

// MintToToken maps the supported SPL mints to their symbol.
var MintToToken = map[string]Token{
	USDCMint: TokenUSDC,
	USDTMint: TokenUSDT,
}

// ExplorerTxURL returns the solscan link for a transaction.
func ExplorerTxURL(signature string) string {
	return "https://solscan.io/tx/" + signature
}

// ExplorerAccountURL returns the solscan link for an account.
func ExplorerAccountURL(address string) string {
	return "https://solscan.io/account/" + address
}
