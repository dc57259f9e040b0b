package shadow

// FotaUpdate carries the fields a FOTA/telemetry shadow subtree can set for
// one named image (e.g. "app", "mcuboot", "modem").
type FotaUpdate struct {
	DesiredVersion  string
	DesiredFilename string
	Switchover      uint32
	Start           uint32
	ErrorCount      uint32

	HasDesiredVersion  bool
	HasDesiredFilename bool
	HasSwitchover      bool
	HasStart           bool
	HasErrorCount      bool
}

// ParseFota extracts the FOTA control fields for the named image (the
// object key under `state[.reported]`, e.g. "app") from a shadow document.
// getAccepted adds the extra "reported" hop a get/accepted document has
// versus an update/accepted one, matching ParseGateway's convention.
func (p *Parser) ParseFota(doc, imageName string, getAccepted bool) FotaUpdate {
	p.Reset(doc)

	p.FindType("state", Object, NextParent)
	if getAccepted {
		p.FindType("reported", Object, NextParent)
	}
	imageIdx := p.FindType(imageName, Object, NextParent)

	var out FotaUpdate
	if imageIdx <= 0 {
		return out
	}
	saved := p.index

	p.index = imageIdx
	if i := p.FindType("desired", String, NextParent); i > 0 {
		out.DesiredVersion = p.String(i)
		out.HasDesiredVersion = true
	}

	p.index = imageIdx
	if i := p.FindType("filename", String, NextParent); i > 0 {
		out.DesiredFilename = p.String(i)
		out.HasDesiredFilename = true
	}

	p.index = imageIdx
	if i := p.FindType("switchover", Primitive, NextParent); i > 0 {
		out.Switchover = p.ConvertUint(i)
		out.HasSwitchover = true
	}

	p.index = imageIdx
	if i := p.FindType("start", Primitive, NextParent); i > 0 {
		out.Start = p.ConvertUint(i)
		out.HasStart = true
	}

	p.index = imageIdx
	if i := p.FindType("errorCount", Primitive, NextParent); i > 0 {
		out.ErrorCount = p.ConvertUint(i)
		out.HasErrorCount = true
	}

	p.index = saved
	return out
}

// ParseFotaHost extracts the FOTA bridge hostname, e.g.
// `{"state":{"fwBridge":"example.com"}}`.
func (p *Parser) ParseFotaHost(doc string, getAccepted bool) (host string, ok bool) {
	p.Reset(doc)
	p.FindType("state", Object, NextParent)
	if getAccepted {
		p.FindType("reported", Object, NextParent)
	}
	i := p.FindType("fwBridge", String, NextParent)
	if i <= 0 {
		return "", false
	}
	return p.String(i), true
}

// ParseFotaBlockSize extracts the FOTA transfer block size.
func (p *Parser) ParseFotaBlockSize(doc string, getAccepted bool) (blockSize uint32, ok bool) {
	p.Reset(doc)
	p.FindType("state", Object, NextParent)
	if getAccepted {
		p.FindType("reported", Object, NextParent)
	}
	i := p.FindType("blockSize", Primitive, NextParent)
	if i <= 0 {
		return 0, false
	}
	return p.ConvertUint(i), true
}
