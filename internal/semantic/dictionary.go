package semantic

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Dictionary holds the trigger phrases per situation. Like the
// classification dictionary it is data: operations teams extend it from
// YAML as new oficio phrasings show up, without touching the engine.
type Dictionary struct {
	Freeze        []string `yaml:"freeze"`
	Unfreeze      []string `yaml:"unfreeze"`
	Documentation []string `yaml:"documentation"`
	Transfer      []string `yaml:"transfer"`
	GeneralInfo   []string `yaml:"general_info"`
}

// DefaultDictionary returns the built-in phrase sets.
func DefaultDictionary() *Dictionary {
	return &Dictionary{
		Freeze: []string{
			"bloquear la cuenta",
			"asegurar los recursos",
			"congelar los fondos",
			"inmovilizar la cuenta",
			"embargo precautorio",
			"aseguramiento de cuentas",
		},
		Unfreeze: []string{
			"dejar sin efecto el aseguramiento",
			"levantar el bloqueo",
			"desbloquear la cuenta",
			"liberar los recursos",
		},
		Documentation: []string{
			"estados de cuenta",
			"copia certificada",
			"expediente de identificacion",
			"contratos celebrados",
			"remitir la documentacion",
		},
		Transfer: []string{
			"transferir los recursos",
			"poner a disposicion",
			"traspaso de fondos",
			"realizar el entero",
		},
		GeneralInfo: []string{
			"proporcionar informacion",
			"hacer del conocimiento",
			"informe el estado",
			"estado que guarda",
		},
	}
}

// LoadDictionary reads phrase sets from YAML, falling back to the defaults
// for sections the file leaves empty.
func LoadDictionary(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "semantic: read dictionary %s", path)
	}
	var wrapper struct {
		Situations Dictionary `yaml:"situations"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "semantic: parse dictionary")
	}

	dict := wrapper.Situations
	defaults := DefaultDictionary()
	if len(dict.Freeze) == 0 {
		dict.Freeze = defaults.Freeze
	}
	if len(dict.Unfreeze) == 0 {
		dict.Unfreeze = defaults.Unfreeze
	}
	if len(dict.Documentation) == 0 {
		dict.Documentation = defaults.Documentation
	}
	if len(dict.Transfer) == 0 {
		dict.Transfer = defaults.Transfer
	}
	if len(dict.GeneralInfo) == 0 {
		dict.GeneralInfo = defaults.GeneralInfo
	}
	return &dict, nil
}
