package analysis

import (
	"fmt"
	"strings"

	"sui-invariant-monitor/internal/sui"
)

const promptTemplate = `You are a smart contract security expert analyzing a Sui Move module.

Package: %s
Module: %s

Structs:
%s

Analyze this module and suggest safety invariants to monitor. For each invariant, provide:
1. A unique ID (e.g., INV-001)
2. A descriptive name
3. A clear description of what it checks
4. The formula/condition (using field names from the structs)
5. Severity level (critical/high/medium/low)
6. Which fields are used

Focus on:
- Balance/supply consistency
- Numeric bounds and overflow prevention
- State machine validity
- Access control consistency
- Economic invariants

Respond ONLY with valid JSON in this exact format:
{
  "suggested_invariants": [
    {
      "id": "INV-001",
      "name": "Invariant Name",
      "description": "What this invariant checks",
      "formula": "field_a <= field_b",
      "severity": "high",
      "fields_used": ["field_a", "field_b"]
    }
  ],
  "analysis_notes": "Brief analysis summary"
}`

func BuildPrompt(md sui.ModuleMetadata) string {
	var b strings.Builder
	for _, s := range md.Structs {
		fmt.Fprintf(&b, "\nstruct %s {\n", s.Name)
		for _, f := range s.Fields {
			fmt.Fprintf(&b, "  %s: %s,\n", f.Name, f.Type)
		}
		b.WriteString("}\n")
	}
	return fmt.Sprintf(promptTemplate, md.PackageID, md.ModuleName, b.String())
}
