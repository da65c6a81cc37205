package scoring

import "raptor/internal/models"

// EvaluateHardStops is spec.md §4.F's fail-closed first stage. A non-empty reason
// short-circuits scoring entirely; the caller never computes a category total for a
// hard-stopped candidate. Social-metadata checks are soft (a zero-weight category, not hard-stopping)
// unless strictMetadata is set, per the documented pump.pro relaxation (spec.md §9).
func EvaluateHardStops(in Input, launchSource models.LaunchSource, strictMetadata bool) string {
	if in.HoneypotSuspected {
		return "honeypot_suspected"
	}
	if in.KnownScamDeployer {
		return "known_scam_deployer"
	}
	if in.DeployerBlacklisted {
		return "deployer_blacklisted"
	}
	if !in.IsToken2022 && in.FreezeAuthoritySet {
		return "freeze_authority_present_legacy_spl"
	}
	if launchSource == models.SourceBags && in.MeteoraMissingPoolInit {
		return "meteora_dbc_missing_pool_init_addresses"
	}

	if strictMetadata {
		if !in.HasTwitter && !in.HasWebsite {
			return "metadata_missing_social_presence"
		}
		if !in.HasImage {
			return "metadata_missing_image"
		}
	}

	return ""
}
