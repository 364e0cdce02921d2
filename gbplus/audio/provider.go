package audio

// Mixer exposes the channel debugging controls used by interactive front ends.
type Mixer interface {
	ToggleChannel(channel int)
	SoloChannel(channel int)
	UnmuteAll()
	ChannelStatus() (ch1, ch2, ch3, ch4 bool)
}

var _ Mixer = (*APU)(nil)
