package capability

// Attribution credits the upstream project behind a model or program.
type Attribution struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// ASRModel describes one speech-to-text model offered by a program.
type ASRModel struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description"`
	Languages   []string `json:"languages,omitempty" yaml:"languages"`
}

// Voice describes one text-to-speech voice offered by a program.
type Voice struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description"`
	Languages   []string `json:"languages,omitempty" yaml:"languages"`
}

// ASRProgram advertises a speech-to-text capability and its models.
type ASRProgram struct {
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description"`
	Version     string      `json:"version,omitempty" yaml:"version"`
	Installed   bool        `json:"installed" yaml:"installed"`
	Attribution Attribution `json:"attribution" yaml:"attribution"`
	Models      []ASRModel  `json:"models,omitempty" yaml:"models"`
}

// TTSProgram advertises a text-to-speech capability and its voices.
type TTSProgram struct {
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description"`
	Version     string      `json:"version,omitempty" yaml:"version"`
	Installed   bool        `json:"installed" yaml:"installed"`
	Attribution Attribution `json:"attribution" yaml:"attribution"`
	Voices      []Voice     `json:"voices,omitempty" yaml:"voices"`
}

// Info is the static capability descriptor for a gateway process. It is built
// once at startup from configuration, never mutated afterwards, and returned
// verbatim to every describe event.
type Info struct {
	ASR []ASRProgram `json:"asr,omitempty" yaml:"asr"`
	TTS []TTSProgram `json:"tts,omitempty" yaml:"tts"`
}
