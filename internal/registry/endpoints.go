package registry

// Default upstream endpoints. Every entry can be overridden through the
// config file or environment (see internal/config).
const (
	DefaultCustodyAPIBase = "https://api.custody.example.com"
	DefaultPriceAPIBase   = "https://coins.llama.fi"

	DefaultAptosFullnode = "https://fullnode.mainnet.aptoslabs.com/v1"
	DefaultEthereumRPC   = "https://eth.llamarpc.com"
	DefaultBaseRPC       = "https://base.llamarpc.com"
	DefaultSolanaRPC     = "https://api.mainnet-beta.solana.com"
	DefaultSuiRPC        = "https://fullnode.mainnet.sui.io"
)

// DefaultRPCBySlug returns the built-in RPC endpoint for a chain slug.
func DefaultRPCBySlug(slug string) (string, bool) {
	switch slug {
	case "aptos":
		return DefaultAptosFullnode, true
	case "ethereum":
		return DefaultEthereumRPC, true
	case "base":
		return DefaultBaseRPC, true
	case "solana":
		return DefaultSolanaRPC, true
	case "sui":
		return DefaultSuiRPC, true
	default:
		return "", false
	}
}
