package rimage

// GetSobelX returns the Kernel corresponding to the Sobel kernel in the x direction.
func GetSobelX() Kernel {
	return Kernel{[][]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	},
		3,
		3,
	}
}

// GetSobelY returns the Kernel corresponding to the Sobel kernel in the y direction.
func GetSobelY() Kernel {
	return Kernel{[][]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	},
		3,
		3,
	}
}

// GetBlur3 returns a normalized 3x3 Gaussian blur kernel.
func GetBlur3() Kernel {
	return Kernel{[][]float64{
		{1. / 16., 2. / 16., 1. / 16.},
		{2. / 16., 4. / 16., 2. / 16.},
		{1. / 16., 2. / 16., 1. / 16.},
	},
		3,
		3,
	}
}
