// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package provider

import "strings"

var bedrockPrefixedPrefixes = []string{"us.", "eu.", "apac.", "au.", "jp.", "global."}

// bedrockCrossRegionFamilies lists the model-ID prefixes Bedrock actually
// offers cross-region inference profiles for. Prefixing any other model
// ID (e.g. a provisioned-throughput or single-region-only model) would
// produce an ID Bedrock rejects, so an unlisted family is left untouched.
var bedrockCrossRegionFamilies = []string{
	"anthropic.claude-3",
	"anthropic.claude-sonnet-4",
	"anthropic.claude-opus-4",
	"anthropic.claude-haiku-4",
	"meta.llama3-1",
	"meta.llama3-2",
	"meta.llama3-3",
	"amazon.nova",
	"mistral.mistral-large-2407",
}

// requiresCrossRegionInference reports whether modelID belongs to a family
// Bedrock offers cross-region inference profiles for, per spec condition
// (a): the prefix is applied only when "the model name matches a known
// family that requires cross-region inference profiles".
func requiresCrossRegionInference(modelID string) bool {
	for _, fam := range bedrockCrossRegionFamilies {
		if strings.HasPrefix(modelID, fam) {
			return true
		}
	}
	return false
}

// PrefixBedrockModelID returns the cross-region inference profile ID for
// modelID in region, e.g. "anthropic.claude-3-5-sonnet" in "us-east-1"
// becomes "us.anthropic.claude-3-5-sonnet". Already-prefixed IDs pass
// through unchanged, as does any model ID outside the known
// cross-region-capable families (condition (a)). GovCloud regions are
// excluded: Bedrock doesn't offer cross-region inference profiles there,
// so the model ID is untouched (condition (b)).
func PrefixBedrockModelID(modelID, region string) string {
	for _, p := range bedrockPrefixedPrefixes {
		if strings.HasPrefix(modelID, p) {
			return modelID
		}
	}
	if !requiresCrossRegionInference(modelID) {
		return modelID
	}
	if strings.HasPrefix(region, "us-gov-") {
		return modelID
	}

	// ap-northeast-1 (Tokyo) gets the more specific "jp." profile rather
	// than the general "apac." one.
	switch {
	case strings.HasPrefix(region, "ap-northeast-1"):
		return "jp." + modelID
	case strings.HasPrefix(region, "us-"):
		return "us." + modelID
	case strings.HasPrefix(region, "eu-"):
		return "eu." + modelID
	case strings.HasPrefix(region, "au-"):
		return "au." + modelID
	case strings.HasPrefix(region, "ap-"):
		return "apac." + modelID
	}
	return modelID
}
