package registry

// On-chain entry points invoked by the payload builder. The strategy
// registry is a Move package; identifiers are fully qualified as
// address::module::function.
const (
	StrategyRegistryAddress = "0x9c2e61e1b4a7f5de61b8bbbd5b9f25ef5a6ff3dbb7d4a1f0b2a4de15b3e3a6c1"

	FnStrategyCreate = StrategyRegistryAddress + "::strategy_registry::create_strategy"
	FnStrategyPause  = StrategyRegistryAddress + "::strategy_registry::pause_strategy"
	FnStrategyResume = StrategyRegistryAddress + "::strategy_registry::resume_strategy"
	FnStrategyCancel = StrategyRegistryAddress + "::strategy_registry::cancel_strategy"

	FnSwapExactIn   = StrategyRegistryAddress + "::router::swap_exact_in"
	FnYieldDeposit  = StrategyRegistryAddress + "::vaults::deposit"
	FnYieldWithdraw = StrategyRegistryAddress + "::vaults::withdraw"
)

// View functions used to mirror on-chain strategy state.
const (
	ViewStrategyGet = StrategyRegistryAddress + "::strategy_registry::get_strategy"
)
