package domain

type CameraOutcome string

const (
	CameraTurnedOff  CameraOutcome = "Camera turned OFF via JavaScript"
	CameraAlreadyOff CameraOutcome = "Camera already OFF"
	CameraNotFound   CameraOutcome = "Camera button not found"
)

func (o CameraOutcome) String() string {
	return string(o)
}
