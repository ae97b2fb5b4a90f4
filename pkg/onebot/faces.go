package onebot

// QQ face id to display name. The table is data, not logic: ids and names
// come from the classic QQ emoji set and can be extended without touching
// the codec.
var faceNames = map[int64]string{
	0:   "惊讶",
	1:   "撇嘴",
	2:   "色",
	3:   "发呆",
	4:   "得意",
	5:   "流泪",
	6:   "害羞",
	7:   "闭嘴",
	8:   "睡",
	9:   "大哭",
	10:  "尴尬",
	11:  "发怒",
	12:  "调皮",
	13:  "呲牙",
	14:  "微笑",
	15:  "难过",
	16:  "酷",
	18:  "抓狂",
	19:  "吐",
	20:  "偷笑",
	21:  "可爱",
	22:  "白眼",
	23:  "傲慢",
	24:  "饥饿",
	25:  "困",
	26:  "惊恐",
	27:  "流汗",
	28:  "憨笑",
	29:  "悠闲",
	30:  "奋斗",
	31:  "咒骂",
	32:  "疑问",
	33:  "嘘",
	34:  "晕",
	35:  "折磨",
	36:  "衰",
	37:  "骷髅",
	38:  "敲打",
	39:  "再见",
	41:  "发抖",
	42:  "爱情",
	43:  "跳跳",
	46:  "猪头",
	49:  "拥抱",
	53:  "蛋糕",
	54:  "闪电",
	55:  "炸弹",
	56:  "刀",
	57:  "足球",
	59:  "便便",
	60:  "咖啡",
	61:  "饭",
	63:  "玫瑰",
	64:  "凋谢",
	66:  "爱心",
	67:  "心碎",
	69:  "礼物",
	74:  "太阳",
	75:  "月亮",
	76:  "赞",
	77:  "踩",
	78:  "握手",
	79:  "胜利",
	85:  "飞吻",
	86:  "怄火",
	89:  "西瓜",
	96:  "冷汗",
	97:  "擦汗",
	98:  "抠鼻",
	99:  "鼓掌",
	100: "糗大了",
	101: "坏笑",
	102: "左哼哼",
	103: "右哼哼",
	104: "哈欠",
	105: "鄙视",
	106: "委屈",
	107: "快哭了",
	108: "阴险",
	109: "亲亲",
	110: "吓",
	111: "可怜",
	112: "菜刀",
	113: "啤酒",
	114: "篮球",
	115: "乒乓",
	116: "示爱",
	117: "瓢虫",
	118: "抱拳",
	119: "勾引",
	120: "拳头",
	121: "差劲",
	122: "爱你",
	123: "NO",
	124: "OK",
	125: "转圈",
	129: "挥手",
	144: "喝彩",
	146: "爆筋",
	147: "棒棒糖",
	171: "茶",
	172: "眨眼睛",
	173: "泪奔",
	174: "无奈",
	175: "卖萌",
	176: "小纠结",
	177: "喷血",
	178: "斜眼笑",
	179: "doge",
	181: "戳一戳",
	182: "笑哭",
	183: "我最美",
	201: "点赞",
	212: "托腮",
	262: "脑阔疼",
	264: "捂脸",
	265: "辣眼睛",
	266: "哦哟",
	267: "头秃",
	268: "问号脸",
	269: "暗中观察",
	270: "emm",
	271: "吃瓜",
	272: "呵呵哒",
	273: "我酸了",
	277: "汪汪",
	281: "无眼笑",
	282: "敬礼",
	283: "狂笑",
	284: "面无表情",
	285: "摸鱼",
	287: "哦",
	289: "睁眼",
	290: "敲开心",
	293: "摸锦鲤",
	294: "期待",
	297: "拜谢",
	298: "元宝",
	299: "牛啊",
	305: "右亲亲",
	306: "牛气冲天",
	307: "喵喵",
	311: "打call",
	312: "变形",
	314: "仔细分析",
	317: "菜汪",
	318: "崇拜",
	319: "比心",
	320: "庆祝",
	322: "拒绝",
	324: "吃糖",
	326: "生气",
}

// safeFaceIDs lists the ids NapCat is known to deliver reliably; names that
// resolve outside this set degrade to plain bracketed text. Other gateway
// builds may support more, so this is configuration data rather than a
// protocol fact.
var safeFaceIDs = buildFaceIDSet(
	0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 18, 19, 20,
	21, 22, 23, 24, 25, 26, 27, 28, 29, 30, 31, 32, 33, 34, 35, 36, 37,
	38, 39, 41, 42, 43, 46, 49, 53, 54, 55, 56, 57, 59, 60, 61, 63, 64,
	66, 67, 69, 74, 75, 76, 77, 78, 79, 85, 86, 89, 96, 97, 98, 99, 100,
	101, 102, 103, 104, 105, 106, 107, 108, 109, 110, 111, 112, 113, 114,
	115, 116, 117, 118, 119, 120, 121, 122, 123, 124, 125, 129, 144, 146,
	147, 171, 172, 173, 174, 175, 176, 177, 178, 179, 181, 182, 183, 201,
	212, 264, 265, 266, 267, 268, 269, 270, 271, 272, 273, 277, 281, 282,
	283, 284, 285, 287, 289, 290, 293, 294, 297, 298, 299, 305, 306, 307,
	311, 312, 314, 317, 318, 319, 320, 322, 324, 326,
)

// faceIDs maps name back to id, preferring the lowest id when several
// entries share a display name.
var faceIDs = buildFaceNameIndex()

func buildFaceIDSet(ids ...int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func buildFaceNameIndex() map[string]int64 {
	idx := make(map[string]int64, len(faceNames))
	for id, name := range faceNames {
		if prev, ok := idx[name]; !ok || id < prev {
			idx[name] = id
		}
	}
	return idx
}

// FaceName resolves a face id to its display name.
func FaceName(id int64) (string, bool) {
	name, ok := faceNames[id]
	return name, ok
}

// FaceID resolves a display name to a deliverable face id. Names mapping
// only to ids outside the safe set report !ok.
func FaceID(name string) (int64, bool) {
	id, ok := faceIDs[name]
	if !ok {
		return 0, false
	}
	if _, safe := safeFaceIDs[id]; !safe {
		return 0, false
	}
	return id, true
}

// FaceIDDeliverable reports whether the gateway is expected to accept the id.
func FaceIDDeliverable(id int64) bool {
	_, ok := safeFaceIDs[id]
	return ok
}
