package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	MimeVideo = "video/"
	MimeAudio = "audio/"
	MimePDF   = "application/pdf"
)

var (
	AllowedVideoTypes = []string{MimeVideo}
	// Browsers record audio as webm or ogg; both sniff as containers.
	AllowedAudioTypes = []string{MimeAudio, "video/webm", "application/ogg"}
)
