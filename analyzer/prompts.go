package analyzer

import (
	"encoding/json"
	"fmt"

	"github.com/marcelsud/tymbug/webhook"
)

const systemPrompt = `You are an expert Webhook Analyzer AI. Your task is to analyze webhooks and provide detailed insights about:
1. Data patterns and structures
2. Potential anomalies
3. Security risks
4. Schema improvements
5. Potential issues

Provide your analysis in a structured JSON format with the following sections and structures:

{
  "patterns": [{
    "type": "string (e.g., 'Timestamp Format', 'ID Structure')",
    "description": "string (detailed explanation)",
    "confidence": "number (0-1)",
    "examples": ["string array of examples"],
    "path": "string (JSON path to the pattern)"
  }],
  "anomalies": [{
    "type": "string (e.g., 'Invalid Value', 'Missing Field')",
    "description": "string (detailed explanation)",
    "severity": "string ('low', 'medium', 'high')",
    "location": "string (where found)",
    "suggestion": "string (how to fix)"
  }],
  "security_risks": [{
    "risk_type": "string (e.g., 'Data Exposure', 'Input Validation')",
    "description": "string (detailed explanation)",
    "severity": "string ('low', 'medium', 'high')",
    "mitigation": "string (how to fix)",
    "affected_fields": ["string array of affected fields"]
  }],
  "schema_improvements": [{
    "field": "string (field name)",
    "current_type": "string (current data type)",
    "suggested_type": "string (recommended type)",
    "reason": "string (why change)",
    "example": "string (example of proper format)"
  }],
  "potential_issues": [{
    "issue_type": "string (e.g., 'Scalability', 'Compatibility')",
    "description": "string (detailed explanation)",
    "probability": "number (0-1)",
    "impact": "string ('low', 'medium', 'high')",
    "prevention": "string (how to prevent)"
  }]
}

Be precise, technical, and provide actionable insights. Always include at least one item in each array if any issues are found.`

const fallbackPrompt = `Analyze this webhook with basic checks only:

%s

Perform basic analysis focusing on:

1. Patterns:
   - Basic data types and formats
   - Common field patterns

2. Anomalies:
   - Basic data validation
   - Required fields check

3. Security Risks:
   - Common security concerns
   - Basic input validation

4. Schema Improvements:
   - Simple type checks
   - Basic field validations

5. Potential Issues:
   - Common webhook issues
   - Basic integration concerns

Ensure your response follows the exact JSON structure from the system prompt.
Keep the analysis simple but maintain the required format for each section.`

func buildAnalysisPrompt(wh webhook.Webhook) string {
	headers, _ := json.MarshalIndent(wh.Headers, "", "  ")
	body := prettyBody(wh.Body)

	return fmt.Sprintf(`Analyze this webhook data and provide a comprehensive analysis in the specified JSON format:

Provider: %s
Method: %s
Path: %s

Headers:
%s

Payload:
%s

For each section, analyze the following:

1. Patterns:
   - Data format patterns (dates, IDs, etc.)
   - Common field structures
   - Recurring data types
   - Naming conventions
   - Field relationships

2. Anomalies:
   - Unexpected data types
   - Missing required fields
   - Inconsistent formats
   - Unusual values
   - Data validation issues

3. Security Risks:
   - Authentication concerns
   - Data exposure risks
   - Input validation issues
   - Authorization problems
   - Sensitive data handling

4. Schema Improvements:
   - Type optimizations
   - Field naming suggestions
   - Structure enhancements
   - Validation requirements
   - Documentation needs

5. Potential Issues:
   - Scalability concerns
   - Backward compatibility
   - Performance impacts
   - Integration challenges
   - Maintenance considerations

Ensure each section in your response follows the exact structure from the system prompt.
If you identify any issues, include at least one item in the corresponding array.
If no issues are found in a category, provide an empty array.`,
		wh.Provider, wh.Method, wh.Path, headers, body)
}

func buildFallbackPrompt(wh webhook.Webhook) string {
	data, _ := json.MarshalIndent(struct {
		Provider string            `json:"provider"`
		Method   string            `json:"method"`
		Path     string            `json:"path"`
		Headers  map[string]string `json:"headers"`
		Body     json.RawMessage   `json:"body"`
	}{wh.Provider, wh.Method, wh.Path, wh.Headers, wh.Body}, "", "  ")

	return fmt.Sprintf(fallbackPrompt, data)
}

func prettyBody(body json.RawMessage) string {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return string(body)
	}
	pretty, err := json.MarshalIndent(decoded, "", "  ")
	if err != nil {
		return string(body)
	}
	return string(pretty)
}
