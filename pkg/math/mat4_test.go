package math

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestIdentity(t *testing.T) {
	m := Identity()
	// Diagonal should be 1
	if m[0] != 1 || m[5] != 1 || m[10] != 1 || m[15] != 1 {
		t.Error("Identity diagonal should be 1")
	}
	// Off-diagonal should be 0
	if m[1] != 0 || m[4] != 0 {
		t.Error("Identity off-diagonal should be 0")
	}
}

func TestMulIdentity(t *testing.T) {
	m := Translate(1, 2, 3)
	id := Identity()
	result := m.Mul(id)

	for i := 0; i < 16; i++ {
		if result[i] != m[i] {
			t.Errorf("M * I should equal M, element %d: got %f, want %f", i, result[i], m[i])
		}
	}
}

func TestTranslate(t *testing.T) {
	m := Translate(5, 10, 15)

	// Translation should be in column 4 (indices 12, 13, 14)
	if m[12] != 5 || m[13] != 10 || m[14] != 15 {
		t.Errorf("Translate: got (%f, %f, %f), want (5, 10, 15)", m[12], m[13], m[14])
	}
	if got := m.Translation(); got != (Vec3{5, 10, 15}) {
		t.Errorf("Translation() = %v", got)
	}
}

func TestTransformPoint(t *testing.T) {
	m := Translate(10, 20, 30)
	result := m.TransformPoint([3]float32{1, 2, 3})

	expected := [3]float32{11, 22, 33}
	if result != expected {
		t.Errorf("TransformPoint: got %v, want %v", result, expected)
	}
}

func TestTransformDirectionIgnoresTranslation(t *testing.T) {
	m := Translate(10, 20, 30).Mul(Scale(2, 2, 2))
	result := m.TransformDirection([3]float32{1, 0, 0})
	if result != [3]float32{2, 0, 0} {
		t.Errorf("TransformDirection: got %v, want (2, 0, 0)", result)
	}
}

func TestTranslationChain(t *testing.T) {
	m := Translate(10, 0, 0).Mul(Translate(0, 5, 0)).Mul(Translate(0, 0, 2))
	got := m.TransformPoint([3]float32{0, 0, 0})
	if got != [3]float32{10, 5, 2} {
		t.Errorf("chained translation: got %v, want (10, 5, 2)", got)
	}
}

func TestFromTRSMatchesMathGL(t *testing.T) {
	axis := Vec3{1, 2, 3}.Normalize()
	q := QuatFromAxisAngle(axis, 0.7)
	got := FromTRS(Vec3{1, -2, 3}, q, Vec3{2, 3, 4})

	want := mgl32.Translate3D(1, -2, 3).
		Mul4(mgl32.QuatRotate(0.7, mgl32.Vec3{axis.X, axis.Y, axis.Z}).Mat4()).
		Mul4(mgl32.Scale3D(2, 3, 4))

	for i := 0; i < 16; i++ {
		if abs(got[i]-want[i]) > 1e-5 {
			t.Fatalf("FromTRS element %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestInverseMatchesMathGL(t *testing.T) {
	m := FromTRS(Vec3{4, 5, 6}, QuatFromAxisAngle(Vec3{0, 1, 0}, 1.1), Vec3{1, 2, 0.5})
	got := m.Inverse()
	want := mgl32.Mat4(m).Inv()

	for i := 0; i < 16; i++ {
		if abs(got[i]-want[i]) > 1e-4 {
			t.Fatalf("Inverse element %d: got %v, want %v", i, got[i], want[i])
		}
	}

	prod := m.Mul(got)
	id := Identity()
	for i := 0; i < 16; i++ {
		if abs(prod[i]-id[i]) > 1e-5 {
			t.Fatalf("M * M^-1 element %d: got %v", i, prod[i])
		}
	}
}

func TestInverseSingular(t *testing.T) {
	if got := Scale(0, 1, 1).Inverse(); got != Identity() {
		t.Errorf("singular inverse should be identity, got %v", got)
	}
}

func TestNormalMatrix(t *testing.T) {
	n, ok := Scale(2, 4, 8).NormalMatrix()
	if !ok {
		t.Fatal("NormalMatrix reported singular for a scale matrix")
	}
	want := Mat3{0.5, 0, 0, 0, 0.25, 0, 0, 0, 0.125}
	if n != want {
		t.Errorf("NormalMatrix = %v, want %v", n, want)
	}

	if _, ok := Scale(0, 1, 1).NormalMatrix(); ok {
		t.Error("NormalMatrix should fail for singular block")
	}
}

func TestPerspective(t *testing.T) {
	m := Perspective(float32(math.Pi/4), 1, 0.1, 100)

	if m[0] == 0 || m[5] == 0 {
		t.Error("Perspective should have non-zero elements")
	}
	if m[15] != 0 {
		t.Errorf("Perspective [15] should be 0, got %f", m[15])
	}
	if m[11] != -1 {
		t.Errorf("Perspective [11] should be -1, got %f", m[11])
	}
}

func TestPerspectiveInfiniteMatchesLimit(t *testing.T) {
	finite := Perspective(1, 1.5, 0.1, 1e7)
	inf := PerspectiveInfinite(1, 1.5, 0.1)
	for i := 0; i < 16; i++ {
		if abs(finite[i]-inf[i]) > 1e-3 {
			t.Errorf("element %d: finite %v vs infinite %v", i, finite[i], inf[i])
		}
	}
}

func TestOrthoMatchesMathGL(t *testing.T) {
	got := Ortho(-2, 2, -1, 1, 0.5, 20)
	want := mgl32.Ortho(-2, 2, -1, 1, 0.5, 20)
	for i := 0; i < 16; i++ {
		if abs(got[i]-want[i]) > 1e-6 {
			t.Errorf("Ortho element %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFromMat3(t *testing.T) {
	m3 := Mat3{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}
	m4 := FromMat3(m3)

	if m4[0] != 1 || m4[1] != 2 || m4[2] != 3 {
		t.Error("FromMat3 column 0 incorrect")
	}
	if m4[4] != 4 || m4[5] != 5 || m4[6] != 6 {
		t.Error("FromMat3 column 1 incorrect")
	}
	if m4[15] != 1 {
		t.Errorf("FromMat3 [15] should be 1, got %f", m4[15])
	}
	if m4.Mat3() != m3 {
		t.Error("Mat3() should round-trip FromMat3")
	}
	if !m4.IsAffine() {
		t.Error("FromMat3 result should be affine")
	}
}

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
