package effects

// nullState is the effect of a slot with no effect loaded: it outputs
// nothing.
type nullState struct {
	outTarget
}

func (s *nullState) DeviceUpdate(Device, *IRBuffer) {}

func (s *nullState) Update(_ Device, _ float32, _ Props, target Target) {
	s.out = target.Main.Buffer
}

func (s *nullState) Process(int, [][]float32, [][]float32) {}
