package scoring

// scoreCategories computes every weighted category for a candidate that survived hard
// stops (spec.md §4.F). Each category is self-contained so a missing upstream signal
// (e.g. holder count not yet indexed) degrades that category's score rather than
// blocking the others.
func scoreCategories(in Input, strictMetadata bool) []CategoryScore {
	return []CategoryScore{
		scoreSellability(in),
		scoreSupplyIntegrity(in),
		scoreLiquidityControl(in),
		scoreDistribution(in),
		scoreDeployerProvenance(in),
		scorePostLaunchControls(in),
		scoreExecutionRisk(in),
		scoreSocialMetadata(in, strictMetadata),
	}
}

func scoreSellability(in Input) CategoryScore {
	max := weights[CategorySellability]
	points := max
	reason := "no sellability concerns detected"
	if in.HasBlacklistHook {
		points = 0
		reason = "token carries a blacklist/freeze hook"
	} else if in.FreezeAuthoritySet && in.IsToken2022 {
		points *= 0.5
		reason = "Token-2022 mint retains a freeze authority"
	}
	return CategoryScore{Category: CategorySellability, Points: points, Max: max, Reason: reason}
}

func scoreSupplyIntegrity(in Input) CategoryScore {
	max := weights[CategorySupplyIntegrity]
	if in.MintAuthoritySet {
		return CategoryScore{Category: CategorySupplyIntegrity, Points: 0, Max: max, Reason: "mint authority not renounced"}
	}
	return CategoryScore{Category: CategorySupplyIntegrity, Points: max, Max: max, Reason: "mint authority renounced"}
}

func scoreLiquidityControl(in Input) CategoryScore {
	max := weights[CategoryLiquidityControl]
	if in.LPSizeSOL <= 0 {
		// Liquidity not yet known (e.g. fresh pump.fun curve); neutral half credit rather
		// than penalizing a candidate the opportunity loop will bypass this check for anyway.
		return CategoryScore{Category: CategoryLiquidityControl, Points: max * 0.5, Max: max, Reason: "liquidity not yet established"}
	}
	points := 0.0
	switch {
	case in.LPSizeSOL >= 50 && in.LPLocked:
		points = max
	case in.LPSizeSOL >= 50:
		points = max * 0.7
	case in.LPLocked:
		points = max * 0.5
	default:
		points = max * 0.2
	}
	return CategoryScore{Category: CategoryLiquidityControl, Points: points, Max: max, Reason: "liquidity size/lock assessed"}
}

func scoreDistribution(in Input) CategoryScore {
	max := weights[CategoryDistribution]
	if in.HolderCount == 0 {
		return CategoryScore{Category: CategoryDistribution, Points: max * 0.5, Max: max, Reason: "holder count not yet indexed"}
	}
	points := max
	reason := "distribution looks healthy"
	if in.Top10PctSupply > 60 {
		points = max * 0.1
		reason = "top-10 holders control over 60% of supply"
	} else if in.Top10PctSupply > 40 {
		points = max * 0.4
		reason = "top-10 holders control over 40% of supply"
	} else if in.HolderCount < 10 {
		points = max * 0.3
		reason = "fewer than 10 holders"
	}
	return CategoryScore{Category: CategoryDistribution, Points: points, Max: max, Reason: reason}
}

func scoreDeployerProvenance(in Input) CategoryScore {
	max := weights[CategoryDeployer]
	if in.DeployerPriorRugs > 0 {
		return CategoryScore{Category: CategoryDeployer, Points: 0, Max: max, Reason: "deployer has prior rugs on record"}
	}
	if in.DeployerPriorSuccess > 0 {
		return CategoryScore{Category: CategoryDeployer, Points: max, Max: max, Reason: "deployer has prior successful launches"}
	}
	return CategoryScore{Category: CategoryDeployer, Points: max * 0.6, Max: max, Reason: "deployer has no prior history"}
}

func scorePostLaunchControls(in Input) CategoryScore {
	max := weights[CategoryPostLaunch]
	points := max
	reason := "no post-launch control risk"
	if in.HasPauseAuthority || in.HasBlacklistHook {
		points = max * 0.2
		reason = "token retains pause/blacklist capability"
	} else if !in.OwnershipRenounced {
		points = max * 0.6
		reason = "ownership not renounced"
	}
	return CategoryScore{Category: CategoryPostLaunch, Points: points, Max: max, Reason: reason}
}

func scoreExecutionRisk(in Input) CategoryScore {
	max := weights[CategoryExecutionRisk]
	points := max
	reason := "execution risk acceptable"
	if in.EstimatedSlippagePct > 10 {
		points *= 0.3
		reason = "estimated slippage exceeds 10%"
	} else if in.EstimatedSlippagePct > 5 {
		points *= 0.6
		reason = "estimated slippage exceeds 5%"
	}
	if in.PositionSizeSOL > 0 && in.EstimatedGasSOL/in.PositionSizeSOL > 0.05 {
		points *= 0.5
		reason = "gas cost exceeds 5% of position size"
	}
	return CategoryScore{Category: CategoryExecutionRisk, Points: points, Max: max, Reason: reason}
}

// scoreSocialMetadata reports the social-presence signal as a zero-weight category when it
// is not a hard stop: Max and Points are both 0, so it never changes the total, and its
// reason appears only in PerCategory, never in Result.Reasons (the scorer adds a reason
// only when Points < Max*0.5). (spec.md §9: soft by default, strict flips it to a hard stop upstream
// and this category is skipped — callers of scoreCategories always include it, but under
// strict mode the candidate never reaches here because EvaluateHardStops already fired).
func scoreSocialMetadata(in Input, strictMetadata bool) CategoryScore {
	max := 0.0 // social metadata is advisory only: reported per category, not weighted
	points := 0.0
	reason := "social metadata present"
	if !in.HasTwitter && !in.HasWebsite {
		reason = "no social presence found"
	} else if !in.HasImage {
		reason = "missing token image"
	}
	_ = strictMetadata
	return CategoryScore{Category: "social_metadata", Points: points, Max: max, Reason: reason}
}
