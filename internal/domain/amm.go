package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	// Precision es la escala fija de precios y fees: 10000 = 100%.
	Precision uint64 = 10_000

	// LockPeriod es el tiempo mínimo entre el último depósito y un retiro de shares.
	LockPeriod = 24 * time.Hour

	// CounterWindow es la ventana de los contadores volume24h / fees24h.
	CounterWindow = 24 * time.Hour

	// TreasuryShareBps es la parte del fee que va al treasury (20%).
	TreasuryShareBps uint64 = 2_000
)

// AMMModel selecciona el modelo de pricing de un mercado.
type AMMModel int

const (
	ModelLMSR AMMModel = iota
	ModelPMAMM
	ModelL2AMM
	ModelHybrid
)

var modelNames = map[AMMModel]string{
	ModelLMSR:   "LMSR",
	ModelPMAMM:  "PM_AMM",
	ModelL2AMM:  "L2_AMM",
	ModelHybrid: "HYBRID",
}

// String devuelve el nombre canónico del modelo.
func (m AMMModel) String() string {
	if name, ok := modelNames[m]; ok {
		return name
	}
	return fmt.Sprintf("AMMModel(%d)", int(m))
}

// Valid devuelve true si el modelo es uno de los cuatro soportados.
func (m AMMModel) Valid() bool {
	_, ok := modelNames[m]
	return ok
}

// UsesLMSR devuelve true si el modelo necesita el parámetro b (LMSR o Hybrid).
func (m AMMModel) UsesLMSR() bool {
	return m == ModelLMSR || m == ModelHybrid
}

// ParseAMMModel acepta "lmsr", "pm_amm", "pm-amm", "l2_amm", "hybrid" (sin distinguir mayúsculas).
func ParseAMMModel(s string) (AMMModel, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for m, name := range modelNames {
		if name == norm {
			return m, nil
		}
	}
	return 0, fmt.Errorf("domain.ParseAMMModel: unknown model %q", s)
}

// MarshalYAML / UnmarshalYAML permiten escribir `amm_model: hybrid` en el config.
func (m AMMModel) MarshalYAML() (any, error) {
	return m.String(), nil
}

func (m *AMMModel) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseAMMModel(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Outcome es uno de los dos lados de un mercado binario.
type Outcome int

const (
	OutcomeYes Outcome = iota
	OutcomeNo
)

// String devuelve "YES" o "NO".
func (o Outcome) String() string {
	if o == OutcomeNo {
		return "NO"
	}
	return "YES"
}

// Opposite devuelve el otro lado del mercado.
func (o Outcome) Opposite() Outcome {
	if o == OutcomeNo {
		return OutcomeYes
	}
	return OutcomeNo
}

// ParseOutcome acepta "yes"/"no" sin distinguir mayúsculas.
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "YES", "Y":
		return OutcomeYes, nil
	case "NO", "N":
		return OutcomeNo, nil
	}
	return 0, fmt.Errorf("domain.ParseOutcome: unknown outcome %q", s)
}

// Side devuelve "BUY" o "SELL".
func Side(isBuy bool) string {
	if isBuy {
		return "BUY"
	}
	return "SELL"
}
