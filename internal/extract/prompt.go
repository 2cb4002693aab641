// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/template"

	"github.com/pdiddy/bes-catalog/pkg/types"
)

// extractionPromptTmpl asks the model for a JSON object shaped like
// ExtractedParameterSet. The answer is normalized before use, so the model
// may report any unit it finds in the text.
var extractionPromptTmpl = template.Must(template.New("extraction").Parse(`You extract experimental parameters from bioelectrochemical systems research (microbial fuel cells, electrolysis cells, desalination cells, electrosynthesis).

Read the title and abstract below and return one JSON object. Include only values stated in the text. Omit any field or category you cannot find; never guess.

Categories and fields:
- environmental: temperature, pH, conductivity
- reactorConfiguration: systemType (MFC, MEC, MDC, MES or BES), design, volume, membraneType, electrodeSpacing
- electrodeSpecifications: anodeMaterial, cathodeMaterial, anodeArea, cathodeArea, surfaceModifications (list), catalyst
- biologicalParameters: organisms (list of names), inoculumSource, substrate, substrateConcentration, biofilmThickness
- performanceMetrics: powerDensity, volumetricPowerDensity, currentDensity, current, openCircuitVoltage, operatingVoltage, coulombicEfficiency, voltageEfficiency, energyEfficiency, codRemoval
- operationalParameters: hydraulicRetentionTime, externalResistance, operationMode (batch, fed-batch or continuous), flowRate, operationDuration
- electrochemicalData: internalResistance, chargeTransferResistance, techniques (list)

Numeric fields are objects {"value": number, "unit": string} with an optional "conditions" string. Text fields are strings. List fields are arrays of strings.

Example response:
{"performanceMetrics": {"powerDensity": {"value": 1.5, "unit": "W/m2"}}, "biologicalParameters": {"organisms": ["Geobacter sulfurreducens"]}}

Title: {{.Title}}
Abstract: {{.Abstract}}
`))

// OllamaBackend calls a local Ollama server's generate endpoint. Each
// Extract call makes one request; Run owns retries.
type OllamaBackend struct {
	Endpoint string
	Model    string
	Client   *http.Client
	Engine   *Engine
}

// NewOllamaBackend builds a backend from configuration.
func NewOllamaBackend(cfg types.LLMConfig) *OllamaBackend {
	return &OllamaBackend{
		Endpoint: cfg.Endpoint,
		Model:    cfg.Model,
		Client:   &http.Client{Timeout: cfg.Timeout},
	}
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Format  string        `json:"format"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// Name returns "llm".
func (*OllamaBackend) Name() string { return string(types.BackendLLM) }

// Extract sends the prompt for p and decodes the model's JSON answer. The
// result goes through NormalizeSet so units and enum spellings match the
// regex engine's output.
func (o *OllamaBackend) Extract(ctx context.Context, p types.PaperText) (types.ExtractedParameterSet, error) {
	prompt, err := renderPrompt(p)
	if err != nil {
		return types.ExtractedParameterSet{}, fmt.Errorf("rendering prompt: %w", err)
	}

	body, err := json.Marshal(ollamaRequest{
		Model:   o.Model,
		Prompt:  prompt,
		Format:  "json",
		Options: ollamaOptions{Temperature: 0},
	})
	if err != nil {
		return types.ExtractedParameterSet{}, fmt.Errorf("marshaling request: %w", err)
	}

	url := strings.TrimRight(o.Endpoint, "/") + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return types.ExtractedParameterSet{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return types.ExtractedParameterSet{}, fmt.Errorf("calling Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return types.ExtractedParameterSet{}, fmt.Errorf("Ollama returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var oResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&oResp); err != nil {
		return types.ExtractedParameterSet{}, fmt.Errorf("decoding Ollama response: %w", err)
	}
	if oResp.Error != "" {
		return types.ExtractedParameterSet{}, errors.New("Ollama: " + oResp.Error)
	}

	var set types.ExtractedParameterSet
	if err := json.Unmarshal([]byte(oResp.Response), &set); err != nil {
		return types.ExtractedParameterSet{}, fmt.Errorf("parsing model JSON: %w", err)
	}

	e := o.Engine
	if e == nil {
		e = Default()
	}
	return e.NormalizeSet(set), nil
}

// renderPrompt executes the extraction prompt template for one paper.
func renderPrompt(p types.PaperText) (string, error) {
	abstract := "(none)"
	if p.Abstract != nil && strings.TrimSpace(*p.Abstract) != "" {
		abstract = *p.Abstract
	}

	var buf bytes.Buffer
	err := extractionPromptTmpl.Execute(&buf, struct{ Title, Abstract string }{p.Title, abstract})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
