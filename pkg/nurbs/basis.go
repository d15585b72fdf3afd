package nurbs

// BasisFuns returns the degree+1 non-vanishing basis functions at u in the
// given span.
func BasisFuns(span int, u float64, degree int, k KnotVec) []float64 {
	n := make([]float64, degree+1)
	left := make([]float64, degree+1)
	right := make([]float64, degree+1)
	n[0] = 1
	for j := 1; j <= degree; j++ {
		left[j] = u - k[span+1-j]
		right[j] = k[span+j] - u
		saved := 0.0
		for r := 0; r < j; r++ {
			temp := n[r] / (right[r+1] + left[j-r])
			n[r] = saved + right[r+1]*temp
			saved = left[j-r] * temp
		}
		n[j] = saved
	}
	return n
}

// DersBasisFuns returns the non-vanishing basis functions and their
// derivatives up to order nd at u. Row d holds the d-th derivatives;
// derivatives above the degree are zero.
func DersBasisFuns(span int, u float64, degree, nd int, k KnotVec) [][]float64 {
	p := degree
	ders := make([][]float64, nd+1)
	for i := range ders {
		ders[i] = make([]float64, p+1)
	}

	ndu := make([][]float64, p+1)
	for i := range ndu {
		ndu[i] = make([]float64, p+1)
	}
	left := make([]float64, p+1)
	right := make([]float64, p+1)
	ndu[0][0] = 1
	for j := 1; j <= p; j++ {
		left[j] = u - k[span+1-j]
		right[j] = k[span+j] - u
		saved := 0.0
		for r := 0; r < j; r++ {
			ndu[j][r] = right[r+1] + left[j-r]
			temp := ndu[r][j-1] / ndu[j][r]
			ndu[r][j] = saved + right[r+1]*temp
			saved = left[j-r] * temp
		}
		ndu[j][j] = saved
	}
	for j := 0; j <= p; j++ {
		ders[0][j] = ndu[j][p]
	}

	top := nd
	if top > p {
		top = p
	}
	a := [2][]float64{make([]float64, p+1), make([]float64, p+1)}
	for r := 0; r <= p; r++ {
		s1, s2 := 0, 1
		a[0][0] = 1
		for kk := 1; kk <= top; kk++ {
			d := 0.0
			rk, pk := r-kk, p-kk
			if r >= kk {
				a[s2][0] = a[s1][0] / ndu[pk+1][rk]
				d = a[s2][0] * ndu[rk][pk]
			}
			j1 := 1
			if rk < -1 {
				j1 = -rk
			}
			j2 := kk - 1
			if r-1 > pk {
				j2 = p - r
			}
			for j := j1; j <= j2; j++ {
				a[s2][j] = (a[s1][j] - a[s1][j-1]) / ndu[pk+1][rk+j]
				d += a[s2][j] * ndu[rk+j][pk]
			}
			if r <= pk {
				a[s2][kk] = -a[s1][kk-1] / ndu[pk+1][r]
				d += a[s2][kk] * ndu[r][pk]
			}
			ders[kk][r] = d
			s1, s2 = s2, s1
		}
	}

	f := float64(p)
	for kk := 1; kk <= top; kk++ {
		for j := 0; j <= p; j++ {
			ders[kk][j] *= f
		}
		f *= float64(p - kk)
	}
	return ders
}
