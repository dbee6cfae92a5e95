// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrefixBedrockModelIDAddsRegionPrefix(t *testing.T) {
	cases := []struct {
		region string
		want   string
	}{
		{"us-east-1", "us.anthropic.claude-3-5-sonnet"},
		{"eu-west-1", "eu.anthropic.claude-3-5-sonnet"},
		{"ap-southeast-2", "apac.anthropic.claude-3-5-sonnet"},
		{"au-east-1", "au.anthropic.claude-3-5-sonnet"},
		{"ap-northeast-1", "jp.anthropic.claude-3-5-sonnet"},
	}
	for _, c := range cases {
		got := PrefixBedrockModelID("anthropic.claude-3-5-sonnet", c.region)
		assert.Equal(t, c.want, got, "region %s", c.region)
	}
}

func TestPrefixBedrockModelIDSkipsGovCloud(t *testing.T) {
	got := PrefixBedrockModelID("anthropic.claude-3-5-sonnet", "us-gov-west-1")
	assert.Equal(t, "anthropic.claude-3-5-sonnet", got)
}

func TestPrefixBedrockModelIDPassesThroughAlreadyPrefixed(t *testing.T) {
	got := PrefixBedrockModelID("us.anthropic.claude-3-5-sonnet", "eu-west-1")
	assert.Equal(t, "us.anthropic.claude-3-5-sonnet", got)
}

func TestPrefixBedrockModelIDSkipsUnknownFamily(t *testing.T) {
	got := PrefixBedrockModelID("cohere.command-r-plus", "us-east-1")
	assert.Equal(t, "cohere.command-r-plus", got, "a family with no cross-region inference profile must not be prefixed")
}

func TestPrefixBedrockModelIDCoversKnownFamilies(t *testing.T) {
	cases := []string{
		"anthropic.claude-sonnet-4-20250514",
		"anthropic.claude-opus-4-20250514",
		"anthropic.claude-haiku-4-20250514",
		"meta.llama3-2-90b-instruct",
		"amazon.nova-pro",
		"mistral.mistral-large-2407",
	}
	for _, id := range cases {
		assert.True(t, requiresCrossRegionInference(id), "%s should be a known cross-region family", id)
	}
}
