package store

import "github.com/erazemk/oprema/internal/model"

// SampleUsers returns the demo staff list. User 4 is the default acting user.
func SampleUsers() []model.User {
	return []model.User{
		{ID: 1, Login: "petrov", DisplayName: "Петров А. В."},
		{ID: 2, Login: "smirnova", DisplayName: "Смирнова Е. Н."},
		{ID: 3, Login: "kuznetsov", DisplayName: "Кузнецов Д. С."},
		{ID: 4, Login: "ivanova", DisplayName: "Иванова М. И."},
	}
}

// SampleAssets returns a small demo fleet, all free.
func SampleAssets() []model.Asset {
	desc := func(guid, serial, passport, class, maker string) *model.Description {
		return &model.Description{
			ERPGUID:      guid,
			SerialNumber: serial,
			PassportID:   passport,
			ClassName:    class,
			Manufacturer: maker,
		}
	}
	return []model.Asset{
		{ID: model.StringID("1"), Type: model.TypeBox, Name: "Ламинарный бокс БАВп-01", Room: "101", Status: model.StatusFree,
			Description: desc("b1f0c8e2-0001", "SN-B-0147", "PS-0001", "Бокс микробиологической безопасности", "Ламинарные системы")},
		{ID: model.StringID("2"), Type: model.TypeBox, Name: "Ламинарный бокс БАВп-02", Room: "101", Status: model.StatusFree},
		{ID: model.StringID("3"), Type: model.TypeOsmometer, Name: "Осмометр ОМКА 1Ц-01", Room: "204", Status: model.StatusFree,
			Description: desc("b1f0c8e2-0003", "SN-O-2231", "PS-0003", "Осмометр криоскопический", "Буревестник")},
		{ID: model.StringID("4"), Type: model.TypeRecirculation, Name: "Рециркулятор Армед", Room: "204", Status: model.StatusFree},
		{ID: model.StringID("5"), Type: model.TypeOsmometer, Name: "Осмометр Advanced 3320", Room: "210", Status: model.StatusFree,
			Description: desc("b1f0c8e2-0005", "SN-A-3320-77", "PS-0005", "Осмометр", "Advanced Instruments")},
		{ID: model.StringID("6"), Name: "Термостат ТС-1/80", Room: "305", Status: model.StatusFree},
	}
}
