package booking

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image/png"
	"time"

	"github.com/skip2/go-qrcode"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// qrPlaceholder is stored when encoding fails; the ticket stays valid and
// can be looked up by its code.
const qrPlaceholder = "QR_UNAVAILABLE"

const qrSize = 256

type qrPayload struct {
	Ticket string `json:"ticket"`
	Cinema struct {
		Name string `json:"name"`
		City string `json:"city"`
	} `json:"cinema"`
	Screen struct {
		Number int `json:"number"`
	} `json:"screen"`
	Movie struct {
		Title string `json:"title"`
	} `json:"movie"`
	Showtime struct {
		ID        uint64 `json:"id"`
		StartTime string `json:"startTime"`
		Display   string `json:"display"`
	} `json:"showtime"`
	Seats []qrSeat `json:"seats"`
}

type qrSeat struct {
	ID    uint64 `json:"id"`
	Label string `json:"label"`
}

// buildQRPayload renders the JSON embedded in the ticket QR code.
func buildQRPayload(code string, st model.Showtime, seats []qrSeat) ([]byte, error) {
	var p qrPayload
	p.Ticket = code
	p.Cinema.Name = st.CinemaName
	p.Cinema.City = st.CinemaCity
	p.Screen.Number = st.Screen.Number
	p.Movie.Title = st.MovieTitle
	p.Showtime.ID = st.ID
	p.Showtime.StartTime = st.StartTime.UTC().Format(time.RFC3339)
	p.Showtime.Display = st.StartTime.UTC().Format("Mon 02 Jan 2006 15:04")
	p.Seats = seats
	return json.Marshal(p)
}

// EncodeQR renders content as a PNG QR code data URL.
func EncodeQR(content []byte) (string, error) {
	qr, err := qrcode.New(string(content), qrcode.Medium)
	if err != nil {
		return "", err
	}
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, qr.Image(qrSize)); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
