package model

// Expediente is the fully reconciled case record produced by source fusion.
// It carries the same field surface as ExtractedFields plus reception
// bookkeeping; downstream classification and export consume it verbatim.
type Expediente struct {
	NumeroExpediente    string `json:"numero_expediente,omitempty"`
	NumeroOficio        string `json:"numero_oficio,omitempty"`
	Causa               string `json:"causa,omitempty"`
	ActuacionSolicitada string `json:"actuacion_solicitada,omitempty"`
	FundamentoLegal     string `json:"fundamento_legal,omitempty"`
	AutoridadEmisora    string `json:"autoridad_emisora,omitempty"`
	FechaEmision        string `json:"fecha_emision,omitempty"`
	FechaRecepcion      string `json:"fecha_recepcion,omitempty"`
	MontoSolicitado     string `json:"monto_solicitado,omitempty"`

	AdditionalFields map[string]string `json:"additional_fields,omitempty"`
	Montos           []Monto           `json:"montos,omitempty"`
	Fechas           []string          `json:"fechas,omitempty"`

	// TextoLibre is the directive body used for semantic analysis, taken
	// from the most reliable source that supplied raw text.
	TextoLibre string `json:"texto_libre,omitempty"`
}

// ExpedienteFromFields builds an Expediente from a reconciled field set.
func ExpedienteFromFields(f *ExtractedFields) *Expediente {
	if f == nil {
		return &Expediente{}
	}
	e := &Expediente{
		NumeroExpediente:    f.NumeroExpediente,
		NumeroOficio:        f.NumeroOficio,
		Causa:               f.Causa,
		ActuacionSolicitada: f.ActuacionSolicitada,
		FundamentoLegal:     f.FundamentoLegal,
		AutoridadEmisora:    f.AutoridadEmisora,
		FechaEmision:        f.FechaEmision,
		FechaRecepcion:      f.FechaRecepcion,
		MontoSolicitado:     f.MontoSolicitado,
		Montos:              append([]Monto(nil), f.Montos...),
		Fechas:              append([]string(nil), f.Fechas...),
	}
	if len(f.AdditionalFields) > 0 {
		e.AdditionalFields = make(map[string]string, len(f.AdditionalFields))
		for k, v := range f.AdditionalFields {
			e.AdditionalFields[k] = v
		}
	}
	return e
}

// Get resolves a field key against the expediente, mirroring
// ExtractedFields.Get so validators can walk both shapes with one code path.
func (e *Expediente) Get(key string) (string, bool) {
	if e == nil {
		return "", false
	}
	f := e.fieldView()
	return f.Get(key)
}

// FieldNames lists the populated field keys in the canonical order.
func (e *Expediente) FieldNames() []string {
	if e == nil {
		return nil
	}
	f := e.fieldView()
	return f.FieldNames()
}

func (e *Expediente) fieldView() ExtractedFields {
	return ExtractedFields{
		NumeroExpediente:    e.NumeroExpediente,
		NumeroOficio:        e.NumeroOficio,
		Causa:               e.Causa,
		ActuacionSolicitada: e.ActuacionSolicitada,
		FundamentoLegal:     e.FundamentoLegal,
		AutoridadEmisora:    e.AutoridadEmisora,
		FechaEmision:        e.FechaEmision,
		FechaRecepcion:      e.FechaRecepcion,
		MontoSolicitado:     e.MontoSolicitado,
		AdditionalFields:    e.AdditionalFields,
	}
}
