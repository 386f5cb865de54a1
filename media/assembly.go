package media


// File is one result file of an assembly step.
type File struct {
	Name   string `json:"name,omitempty"`
	URL    string `json:"url,omitempty"`
	SSLURL string `json:"ssl_url,omitempty"`
}

// Assembly is the status document Transloadit returns.
type Assembly struct {
	ID             string            `json:"assembly_id,omitempty"`
	OK             string            `json:"ok,omitempty"`
	Error          string            `json:"error,omitempty"`
	Message        string            `json:"message,omitempty"`
	AssemblyURL    string            `json:"assembly_url,omitempty"`
	AssemblySSLURL string            `json:"assembly_ssl_url,omitempty"`
	Results        map[string][]File `json:"results,omitempty"`
}

// FirstURL returns the first file of step, preferring its https URL.
func (a *Assembly) FirstURL(step string) string {
	files := a.Results[step]
	if len(files) == 0 {
		return ""
	}
	if files[0].SSLURL != "" {
		return files[0].SSLURL
	}
	return files[0].URL
}

func (a *Assembly) statusURL() string {
	if a.AssemblySSLURL != "" {
		return a.AssemblySSLURL
	}
	return a.AssemblyURL
}

func (a *Assembly) failure() error {
	switch {
	case a.Error != "":
		msg := a.Error
		if a.Message != "" {
			msg += ": " + a.Message
		}
		return serviceError("Assembly failed: "+msg, nil)
	case a.OK == statusAborted:
		return serviceError("Assembly failed: "+a.OK, nil)
	}
	return nil
}
