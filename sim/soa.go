package sim

// SoA is the structure-of-arrays form of a particle slice. Traversals load
// it in InitTraversal and extract forces back in EndTraversal.
type SoA struct {
	ID        []int64
	Ownership []OwnershipState
	X, Y, Z   []float64
	FX        []float64
	FY        []float64
	FZ        []float64
}

// Len returns the number of entries.
func (s *SoA) Len() int { return len(s.ID) }

func (s *SoA) resize(n int) {
	if cap(s.ID) < n {
		*s = SoA{
			ID:        make([]int64, n),
			Ownership: make([]OwnershipState, n),
			X:         make([]float64, n),
			Y:         make([]float64, n),
			Z:         make([]float64, n),
			FX:        make([]float64, n),
			FY:        make([]float64, n),
			FZ:        make([]float64, n),
		}
		return
	}
	s.ID, s.Ownership = s.ID[:n], s.Ownership[:n]
	s.X, s.Y, s.Z = s.X[:n], s.Y[:n], s.Z[:n]
	s.FX, s.FY, s.FZ = s.FX[:n], s.FY[:n], s.FZ[:n]
}

func (s *SoA) set(i int, p *Particle) {
	s.ID[i] = p.ID
	s.Ownership[i] = p.Ownership
	s.X[i], s.Y[i], s.Z[i] = p.R.X, p.R.Y, p.R.Z
	s.FX[i], s.FY[i], s.FZ[i] = p.F.X, p.F.Y, p.F.Z
}

// Load copies ids, positions and forces of ps into s, reusing its buffers.
func (s *SoA) Load(ps []Particle) {
	s.resize(len(ps))
	for i := range ps {
		s.set(i, &ps[i])
	}
}

// LoadRefs is Load for a slice of particle pointers.
func (s *SoA) LoadRefs(ps []*Particle) {
	s.resize(len(ps))
	for i, p := range ps {
		s.set(i, p)
	}
}

// Extract writes the accumulated forces of s back into ps.
func (s *SoA) Extract(ps []Particle) {
	for i := range ps {
		ps[i].F.X, ps[i].F.Y, ps[i].F.Z = s.FX[i], s.FY[i], s.FZ[i]
	}
}

// ExtractRefs is Extract for a slice of particle pointers.
func (s *SoA) ExtractRefs(ps []*Particle) {
	for i, p := range ps {
		p.F.X, p.F.Y, p.F.Z = s.FX[i], s.FY[i], s.FZ[i]
	}
}

// View returns the entries [start, end) sharing s's backing arrays. Writes
// through the view are visible in s.
func (s *SoA) View(start, end int) *SoA {
	return &SoA{
		ID:        s.ID[start:end],
		Ownership: s.Ownership[start:end],
		X:         s.X[start:end],
		Y:         s.Y[start:end],
		Z:         s.Z[start:end],
		FX:        s.FX[start:end],
		FY:        s.FY[start:end],
		FZ:        s.FZ[start:end],
	}
}
