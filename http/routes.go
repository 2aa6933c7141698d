package http

const (
	ChannelInfo      = "ChannelInfo"
	PostParse        = "PostParse"
	JobStatus        = "JobStatus"
	GetChannel       = "GetChannel"
	GetChannelByLink = "GetChannelByLink"
	ListChannels     = "ListChannels"
	GetStatistics    = "GetStatistics"
	Ping             = "Ping"
	Version          = "Version"
)
